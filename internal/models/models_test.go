package models

import (
	"errors"
	"testing"
	"time"
)

func TestTrack(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			track   Track
			wantErr bool
		}{
			{"complete", Track{Source: "itunes", ID: "1", Title: "Song", Artist: "Band"}, false},
			{"unsourced zero value", Track{}, false},
			{"missing title", Track{Source: "itunes", Artist: "Band"}, true},
			{"missing artist", Track{Source: "itunes", Title: "Song"}, true},
			{"blank title", Track{Source: "itunes", Title: "  ", Artist: "Band"}, true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.track.Validate()
				if (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("View", func(t *testing.T) {
		track := Track{
			Source:      "itunes",
			ID:          "42",
			Title:       "Song",
			Artist:      "Band",
			DurationSec: Optional(301),
			ArtworkURL:  Optional("https://img/600x600.jpg"),
			TrackURL:    Optional("https://music/42"),
		}

		view := track.View()
		if view.Title != "Song" || view.Artist != "Band" {
			t.Errorf("unexpected title/artist: %+v", view)
		}
		if view.CoverURL == nil || *view.CoverURL != "https://img/600x600.jpg" {
			t.Errorf("expected cover url to carry artwork, got %v", view.CoverURL)
		}
		if view.PreviewURL != nil {
			t.Errorf("expected nil preview url, got %v", *view.PreviewURL)
		}
		if view.DurationSec == nil || *view.DurationSec != 301 {
			t.Errorf("expected duration 301, got %v", view.DurationSec)
		}
		if view.URL == nil || *view.URL != "https://music/42" {
			t.Errorf("expected url to carry track url, got %v", view.URL)
		}
	})

	t.Run("Views preserves order", func(t *testing.T) {
		views := Views([]Track{{Title: "a"}, {Title: "b"}, {Title: "c"}})
		if len(views) != 3 || views[0].Title != "a" || views[2].Title != "c" {
			t.Errorf("unexpected views: %+v", views)
		}
	})
}

func TestOptional(t *testing.T) {
	if Optional("") != nil {
		t.Error("expected nil for empty string")
	}
	if Optional(0) != nil {
		t.Error("expected nil for zero int")
	}
	if v := Optional("x"); v == nil || *v != "x" {
		t.Errorf("expected pointer to x, got %v", v)
	}
}

func TestCandidate(t *testing.T) {
	t.Run("Term", func(t *testing.T) {
		tests := []struct {
			candidate Candidate
			want      string
		}{
			{Candidate{Title: "Smells Like Teen Spirit", Artist: "Nirvana"}, "Smells Like Teen Spirit - Nirvana"},
			{Candidate{Title: "Smells Like Teen Spirit"}, "Smells Like Teen Spirit"},
			{Candidate{Artist: "Nirvana"}, "Nirvana"},
			{Candidate{Title: "  Song ", Artist: " "}, "Song"},
			{Candidate{}, ""},
		}

		for _, tt := range tests {
			if got := tt.candidate.Term(); got != tt.want {
				t.Errorf("Term(%+v) = %q, want %q", tt.candidate, got, tt.want)
			}
		}
	})

	t.Run("Key ignores case and spacing", func(t *testing.T) {
		a := Candidate{Title: "Come  As You Are", Artist: "NIRVANA"}
		b := Candidate{Title: "come as you are", Artist: "nirvana"}
		if a.Key() != b.Key() {
			t.Errorf("expected equal keys, got %q and %q", a.Key(), b.Key())
		}
	})

	t.Run("ParseCandidate", func(t *testing.T) {
		c := ParseCandidate("Lithium - Nirvana")
		if c.Title != "Lithium" || c.Artist != "Nirvana" {
			t.Errorf("unexpected candidate: %+v", c)
		}

		c = ParseCandidate("  Lithium ")
		if c.Title != "Lithium" || c.Artist != "" {
			t.Errorf("unexpected title-only candidate: %+v", c)
		}
	})

	t.Run("IsZero", func(t *testing.T) {
		if !(Candidate{Title: " "}).IsZero() {
			t.Error("expected blank candidate to be zero")
		}
		if (Candidate{Artist: "x"}).IsZero() {
			t.Error("expected artist-only candidate to be non-zero")
		}
	})
}

func TestOutcomes(t *testing.T) {
	q := Candidate{Title: "Song"}
	boom := errors.New("boom")

	searches := []SearchOutcome{
		Found(q, Track{Source: "itunes", ID: "1", Title: "Song", Artist: "Band"}),
		NotFound(q),
		Failed(q, boom),
	}

	if searches[0].Track == nil || searches[0].Track.ID != "1" {
		t.Errorf("expected found outcome to carry track, got %+v", searches[0])
	}
	if searches[1].Track != nil || searches[1].Err != nil {
		t.Errorf("expected empty not-found outcome, got %+v", searches[1])
	}
	if !errors.Is(searches[2].Err, boom) {
		t.Errorf("expected failed outcome to carry error, got %v", searches[2].Err)
	}

	tally := TallySearches(searches)
	if tally.Found != 1 || tally.NotFound != 1 || tally.Failed != 1 || tally.Total() != 3 {
		t.Errorf("unexpected tally: %+v", tally)
	}

	lookups := []LookupOutcome{LookupFound("1", Track{}), LookupNotFound("2"), LookupFailed("3", boom), LookupFailed("4", boom)}
	lt := TallyLookups(lookups)
	if lt.Found != 1 || lt.NotFound != 1 || lt.Failed != 2 {
		t.Errorf("unexpected lookup tally: %+v", lt)
	}

	if StatusNotFound.String() != "not_found" || Status(9).String() != "unknown" {
		t.Error("unexpected status names")
	}
}

func TestPersistedModels(t *testing.T) {
	t.Run("PersistedTrack", func(t *testing.T) {
		p := NewPersistedTrack(1, Track{Source: "itunes", ID: "1", Title: "Song", Artist: "Band"})
		if err := p.Validate(); err != nil {
			t.Fatalf("unexpected validation error: %v", err)
		}
		if p.Source() != "itunes" || p.SourceID() != "1" {
			t.Errorf("unexpected identity: %s/%s", p.Source(), p.SourceID())
		}

		missing := NewPersistedTrack(1, Track{Source: "itunes", Title: "Song", Artist: "Band"})
		if err := missing.Validate(); err == nil {
			t.Error("expected error for missing source id")
		}
	})

	t.Run("SearchRecord", func(t *testing.T) {
		s := NewSearchRecord(1, "grunge", SearchOK)
		if err := s.Validate(); err != nil {
			t.Fatalf("unexpected validation error: %v", err)
		}
		if s.CreatedAt().IsZero() {
			t.Error("expected created_at to be set")
		}
		if s.DeletedAt() != nil {
			t.Error("new record should not be deleted")
		}
		now := time.Now()
		s.SetDeletedAt(&now)
		if s.DeletedAt() == nil || !s.DeletedAt().Equal(now) {
			t.Error("expected deleted_at to be set")
		}

		bad := NewSearchRecord(1, "", SearchOK)
		if err := bad.Validate(); err == nil {
			t.Error("expected error for empty query")
		}

		bad = NewSearchRecord(1, "grunge", SearchStatus("weird"))
		if err := bad.Validate(); err == nil {
			t.Error("expected error for unknown status")
		}
	})

	var _ Model = (*PersistedTrack)(nil)
	var _ Model = (*SearchRecord)(nil)
}
