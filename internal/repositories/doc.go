// Package repositories implements SQLite persistence for session history and transfer snapshots.
//
// Key Implementations:
//   - [SessionEventRepository] : one row per connection transition, with soft deletes and sequence ordering
//   - [TransferSnapshotRepository] : last known state of each transfer, for listing while the service is unreachable
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
