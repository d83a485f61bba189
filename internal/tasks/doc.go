// Package tasks resolves free-text music queries into catalog tracks with real-time progress reporting.
//
// # Core Operations
//
// [Engine] exposes the resolution pipeline:
//
//  1. [Engine.Aggregate] : query → suggestions → catalog tracks
//     - Opens one request client per provider for the duration of the call
//     - Asks the suggester for candidates (failure is [shared.ErrSuggestionFailed])
//     - Searches every candidate concurrently, bounded by search_concurrency
//     - Looks up the found ids once and returns them in search order
//
//  2. [Engine.Resolve] : the same search and lookup steps for an explicit candidate list
//
//  3. [Engine.BatchExport] : aggregates many queries with a worker pool and writes
//     each result with the formatter package, plus a manifest
//
// # Outcomes
//
// An empty candidate list returns [shared.ErrNoMatches] without touching the catalog.
// When no search finds anything, the error is [shared.ErrServiceUnavailable] if every
// search failed and [shared.ErrNoMatches] otherwise. Partial failures are logged with
// [shared.ErrPartialBatch] and do not fail the call.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Implementation
//
// [Engine] depends on a [Sessions] value; [ProviderSessions] builds the adapters named in
// the aggregate configuration. Persistence is left to callers (repositories.Recorder).
package tasks
