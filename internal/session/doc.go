// Package session manages the lifecycle of the push connection to the transfer service.
//
// A [Manager] composes four parts that all run on one goroutine:
//
//   - activity tracker: turns raw [Signal] values into activity. Only allow-listed surfaces count, the settings
//     surface never does, typing counts after [KeyQuietPeriod] of silence and coming back after at least
//     [VisibilityThreshold] hidden counts once.
//   - idle monitor: a single countdown re-armed by every activity. When it fires the [Oracle] is asked whether a
//     transfer is active; if so the full countdown restarts, otherwise the connection is dropped into
//     [AutoDisconnected]. A minute check warns once per countdown when between one and two minutes remain.
//   - connection machine: one outstanding attempt at a time, bounded by the dial timeout, never reconnecting on its
//     own. Unexpected losses, failed attempts, policy drops and credential changes are told apart by
//     [DisconnectReason].
//   - oracle: [TransferOracle] queries the transfer service and treats failures as "nothing active".
//
// # Publication
//
// Every change produces a new [Status] snapshot, readable through [Manager.Status] and delivered latest-wins on
// [Subscription.Status]. Transitions and notices are delivered as [Event] values on [Subscription.Events].
//
// Push traffic is forwarded through [Options.Forward] and never counts as activity. Each recorded activity sends an
// activity frame back over the push channel.
//
// # Timing
//
// Timer callbacks, dial results and oracle answers are posted back to the loop as closures. Each countdown carries a
// generation so a late fire or a late answer for a countdown that has since been cancelled is discarded.
// Leaving Connected for any reason cancels the countdown and the minute check.
package session
