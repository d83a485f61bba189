package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/trackx/internal/shared"
)

// Track is the canonical track record all provider adapters normalize into.
//
// Title and Artist are always set when Source is set.
// Every pointer field is nil when unknown. StreamURL and DownloadURL are only
// set by catalogs that serve full-length audio; they never stand in for PreviewURL.
type Track struct {
	Source      string  `json:"source"`
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album,omitempty"`
	Genre       string  `json:"genre,omitempty"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	DurationSec *int    `json:"durationSec"`
	ArtworkURL  *string `json:"artworkUrl"`
	PreviewURL  *string `json:"previewUrl"` // short clip, not the full track
	TrackURL    *string `json:"trackUrl"`   // provider's canonical page
	StreamURL   *string `json:"streamUrl,omitempty"`
	DownloadURL *string `json:"downloadUrl,omitempty"`
}

// Validate enforces the title/artist invariant.
func (t Track) Validate() error {
	if t.Source == "" {
		return nil
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track from %s has no title", t.Source)
	}
	if strings.TrimSpace(t.Artist) == "" {
		return fmt.Errorf("track from %s has no artist", t.Source)
	}
	return nil
}

// HasPreview reports whether a playable preview clip is known.
func (t Track) HasPreview() bool {
	return t.PreviewURL != nil
}

// View converts the track into the caller-facing shape.
func (t Track) View() TrackView {
	return TrackView{
		Title:       t.Title,
		Artist:      t.Artist,
		CoverURL:    t.ArtworkURL,
		PreviewURL:  t.PreviewURL,
		DurationSec: t.DurationSec,
		URL:         t.TrackURL,
	}
}

// TrackView is the boundary contract the HTTP and CLI layers serialize to clients.
type TrackView struct {
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	CoverURL    *string `json:"coverUrl"`
	PreviewURL  *string `json:"previewUrl"`
	DurationSec *int    `json:"durationSec"`
	URL         *string `json:"url"`
}

// Views converts tracks in order.
func Views(tracks []Track) []TrackView {
	views := make([]TrackView, len(tracks))
	for i, t := range tracks {
		views[i] = t.View()
	}
	return views
}

// Optional returns a pointer to v, or nil when v is the zero value.
func Optional[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

// Candidate is one title/artist pair to resolve. Artist may be empty.
type Candidate struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
}

// Term builds the catalog search term: "title - artist" when both are present, else whichever is.
func (c Candidate) Term() string {
	title, artist := strings.TrimSpace(c.Title), strings.TrimSpace(c.Artist)
	switch {
	case title != "" && artist != "":
		return title + " - " + artist
	case title != "":
		return title
	default:
		return artist
	}
}

// IsZero reports whether neither title nor artist is set.
func (c Candidate) IsZero() bool {
	return strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Artist) == ""
}

// Key is the normalized (title, artist) pair used to deduplicate candidates.
func (c Candidate) Key() string {
	return shared.NormalizeTrackKey(c.Title, c.Artist)
}

func (c Candidate) String() string { return c.Term() }

// CandidateQuery is an ordered list of candidates; order is preserved through resolution.
type CandidateQuery []Candidate

// ParseCandidate splits "Title - Artist" input into a [Candidate].
//
// Text without the separator becomes a title-only candidate.
func ParseCandidate(s string) Candidate {
	title, artist, ok := strings.Cut(s, " - ")
	if !ok {
		return Candidate{Title: strings.TrimSpace(s)}
	}
	return Candidate{Title: strings.TrimSpace(title), Artist: strings.TrimSpace(artist)}
}

// SearchQuery asks a catalog for the best match of one candidate.
type SearchQuery struct {
	Candidate     Candidate
	Country       string
	Language      string
	PreferPreview bool // favor a result that has a preview clip
}

// LookupOptions tunes a batch lookup. A zero ChunkSize uses the provider default.
type LookupOptions struct {
	Country   string
	Language  string
	ChunkSize int
}

// TrackList is a titled, ordered set of resolved tracks, the unit the formatters export.
type TrackList struct {
	Query       string    `json:"query"`
	Status      string    `json:"status"`
	GeneratedAt time.Time `json:"generatedAt"`
	Tracks      []Track   `json:"tracks"`
}
