// Package tasks runs the long-lived background work around a session with non-blocking progress reporting.
//
// # Transfer Board
//
// [TransferBoard] merges two views of the transfer service:
//
//  1. Pulls of the transfer listing decide membership. A transfer missing from a pull is dropped unless a push
//     notification for it arrived after the pull started.
//  2. Push notifications ([push.Message]) update progress and status. A notification newer than the pulled record
//     wins for that transfer.
//
// A completion notice requests an extra pull, limited by a [rate.Limiter] so a burst of completions costs one
// listing call. Each successful pull is saved through the optional [SnapshotStore].
//
// # Session History
//
// [HistoryRecorder] consumes a subscription's event stream and writes one row per connection transition, warning
// or protection notice through an [EventStore].
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
