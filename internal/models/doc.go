// Package models defines domain entities and persistence interfaces for the track aggregation service.
//
// The package contains two categories of types:
//
// 1. Value types that flow through the resolution pipeline
//   - [Track] : canonical, provider-agnostic track record built by a provider adapter
//   - [Candidate] / [CandidateQuery] : ordered title/artist pairs produced by a suggester
//   - [SearchOutcome] / [LookupOutcome] : per-item Found, NotFound or Failed results
//   - [TrackView] : caller-facing JSON shape
//
// 2. Persistent entities backing the optional search history
//   - [PersistedTrack] : cached track keyed by source and source id
//   - [SearchRecord] : one aggregation request with its counts and status
//
// Optional track fields are pointers: nil means the provider did not supply a value, never an empty string or zero.
package models
