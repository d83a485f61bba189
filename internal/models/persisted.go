package models

import (
	"fmt"
	"strings"
	"time"
)

// record carries the identity and timestamps shared by persisted entities.
type record struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func newRecord(sequence int) record {
	now := time.Now()
	return record{sequence: sequence, createdAt: now, updatedAt: now}
}

func (r *record) ID() string                { return r.id }
func (r *record) Sequence() int             { return r.sequence }
func (r *record) CreatedAt() time.Time      { return r.createdAt }
func (r *record) UpdatedAt() time.Time      { return r.updatedAt }
func (r *record) DeletedAt() *time.Time     { return r.deletedAt }
func (r *record) SetID(id string)           { r.id = id }
func (r *record) SetSequence(seq int)       { r.sequence = seq }
func (r *record) SetCreatedAt(t time.Time)  { r.createdAt = t }
func (r *record) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *record) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// PersistedTrack is a cached [Track] keyed by its source and provider-native id.
type PersistedTrack struct {
	record
	track Track
}

// NewPersistedTrack wraps a resolved track for storage.
func NewPersistedTrack(sequence int, track Track) *PersistedTrack {
	return &PersistedTrack{record: newRecord(sequence), track: track}
}

func (p *PersistedTrack) Track() Track     { return p.track }
func (p *PersistedTrack) Source() string   { return p.track.Source }
func (p *PersistedTrack) SourceID() string { return p.track.ID }

// Validate checks that the cached track can be looked up again.
func (p *PersistedTrack) Validate() error {
	if p.track.Source == "" {
		return fmt.Errorf("track source is required")
	}
	if p.track.ID == "" {
		return fmt.Errorf("track source id is required")
	}
	return p.track.Validate()
}

// SearchStatus is the stored outcome of one aggregation request.
type SearchStatus string

const (
	SearchOK          SearchStatus = "ok"
	SearchNoMatches   SearchStatus = "no_matches"
	SearchUnavailable SearchStatus = "unavailable"
	SearchFailed      SearchStatus = "failed"
)

// SearchRecord is one entry in the search history.
type SearchRecord struct {
	record
	Query          string
	Status         SearchStatus
	CandidateCount int
	TrackCount     int
	FailedCount    int
	Duration       time.Duration
	Tracks         []Track // resolved tracks in result order; loaded on demand
}

// NewSearchRecord creates an unsaved history entry for query.
func NewSearchRecord(sequence int, query string, status SearchStatus) *SearchRecord {
	return &SearchRecord{record: newRecord(sequence), Query: query, Status: status}
}

// Validate checks required fields.
func (s *SearchRecord) Validate() error {
	if strings.TrimSpace(s.Query) == "" {
		return fmt.Errorf("search query is required")
	}
	switch s.Status {
	case SearchOK, SearchNoMatches, SearchUnavailable, SearchFailed:
	default:
		return fmt.Errorf("unknown search status %q", s.Status)
	}
	if s.CandidateCount < 0 || s.TrackCount < 0 || s.FailedCount < 0 {
		return fmt.Errorf("search counts must not be negative")
	}
	return nil
}
