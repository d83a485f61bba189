// Package repositories implements SQLite persistence for resolved tracks and search history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [TrackRepository] : Track cache keyed by (source, source_id), refreshed on every resolution
//   - [SearchRepository] : Search history with status, counts and the ordered result tracks
//   - [Recorder] : Saves a tasks.AggregateResult through both repositories
//
// Sequence numbers provide stable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
// It runs its own transaction, so callers take a sequence before opening theirs.
package repositories
