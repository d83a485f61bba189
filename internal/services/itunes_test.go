package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
	tu "github.com/desertthunder/trackx/internal/testing"
)

func newTestITunes(t *testing.T, handler http.Handler) (*ITunesProvider, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	opts := fastOptions()
	opts.MaxAttempts = 2
	c := NewClient(opts)
	p := NewITunesProvider(shared.ITunesConfig{BaseURL: srv.URL}, c)
	return p, func() {
		c.Close()
		srv.Close()
	}
}

func teenSpirit(preview bool) ITunesItem {
	item := ITunesItem{
		TrackID:          100,
		CollectionID:     900,
		TrackName:        "Smells Like Teen Spirit",
		CollectionName:   "Nevermind",
		ArtistName:       "Nirvana",
		TrackTimeMillis:  301000,
		PrimaryGenreName: "Alternative",
		ReleaseDate:      "1991-09-10T07:00:00Z",
		TrackViewURL:     "https://music.apple.com/us/album/nevermind/900?i=100",
		ArtworkURL100:    "https://is1.mzstatic.com/image/thumb/Music/v4/nevermind/100x100bb.jpg",
	}
	if preview {
		item.TrackID = 101
		item.PreviewURL = "https://audio-ssl.itunes.apple.com/preview/101.m4a"
	}
	return item
}

func TestITunesSearchBest(t *testing.T) {
	t.Run("SmellsLikeTeenSpirit", func(t *testing.T) {
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("term") != "Smells Like Teen Spirit - Nirvana" {
				t.Errorf("unexpected term %q", q.Get("term"))
			}
			if q.Get("entity") != "musicTrack" || q.Get("media") != "music" {
				t.Errorf("unexpected entity/media: %s/%s", q.Get("entity"), q.Get("media"))
			}
			if q.Get("limit") != "5" {
				t.Errorf("expected limit 5 with preview preference, got %s", q.Get("limit"))
			}
			if q.Get("country") != "US" || q.Get("lang") != "en_us" {
				t.Errorf("unexpected locale: %s/%s", q.Get("country"), q.Get("lang"))
			}
			tu.WriteJSON(t, w, ITunesResponse{ResultCount: 2, Results: []ITunesItem{teenSpirit(false), teenSpirit(true)}})
		}))
		defer done()

		q := models.SearchQuery{
			Candidate:     models.Candidate{Title: "Smells Like Teen Spirit", Artist: "Nirvana"},
			Country:       "US",
			Language:      "en_us",
			PreferPreview: true,
		}
		out := p.SearchBest(context.Background(), q)
		if out.Status != models.StatusFound {
			t.Fatalf("expected found, got %v (%v)", out.Status, out.Err)
		}

		track := out.Track
		if track.ID != "101" {
			t.Errorf("expected the result with a preview (101), got %s", track.ID)
		}
		if track.Source != "itunes" || track.Title != "Smells Like Teen Spirit" || track.Artist != "Nirvana" {
			t.Errorf("unexpected track identity: %+v", track)
		}
		if track.DurationSec == nil || *track.DurationSec != 301 {
			t.Errorf("expected 301s, got %v", track.DurationSec)
		}
		if track.ArtworkURL == nil || !strings.HasSuffix(*track.ArtworkURL, "600x600bb.jpg") {
			t.Errorf("expected 600x600 artwork, got %v", track.ArtworkURL)
		}
		if track.PreviewURL == nil {
			t.Error("expected preview url")
		}
		if track.Album != "Nevermind" || track.Genre != "Alternative" {
			t.Errorf("unexpected album/genre: %s/%s", track.Album, track.Genre)
		}
	})

	t.Run("TopResultWithoutPreviewPreference", func(t *testing.T) {
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "1" {
				t.Errorf("expected limit 1, got %s", r.URL.Query().Get("limit"))
			}
			tu.WriteJSON(t, w, ITunesResponse{Results: []ITunesItem{teenSpirit(false)}})
		}))
		defer done()

		out := p.SearchBest(context.Background(), models.SearchQuery{Candidate: models.Candidate{Title: "Smells Like Teen Spirit"}})
		if out.Status != models.StatusFound || out.Track.ID != "100" {
			t.Fatalf("expected top result 100, got %+v", out)
		}
		if out.Track.PreviewURL != nil {
			t.Errorf("expected nil preview, got %v", *out.Track.PreviewURL)
		}
	})

	t.Run("FallsBackToTopResultWhenNoPreview", func(t *testing.T) {
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			second := teenSpirit(false)
			second.TrackID = 102
			tu.WriteJSON(t, w, ITunesResponse{Results: []ITunesItem{teenSpirit(false), second}})
		}))
		defer done()

		out := p.SearchBest(context.Background(), models.SearchQuery{Candidate: models.Candidate{Title: "x"}, PreferPreview: true})
		if out.Status != models.StatusFound || out.Track.ID != "100" {
			t.Fatalf("expected top result 100, got %+v", out)
		}
	})

	t.Run("EmptyResultsIsNotFound", func(t *testing.T) {
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, ITunesResponse{})
		}))
		defer done()

		out := p.SearchBest(context.Background(), models.SearchQuery{Candidate: models.Candidate{Title: "zzzz"}})
		if out.Status != models.StatusNotFound || out.Err != nil || out.Track != nil {
			t.Errorf("expected clean not-found, got %+v", out)
		}
	})

	t.Run("MissingDurationIsNil", func(t *testing.T) {
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			item := teenSpirit(false)
			item.TrackTimeMillis = 0
			item.ArtworkURL100 = ""
			item.TrackViewURL = ""
			tu.WriteJSON(t, w, ITunesResponse{Results: []ITunesItem{item}})
		}))
		defer done()

		out := p.SearchBest(context.Background(), models.SearchQuery{Candidate: models.Candidate{Title: "x"}})
		if out.Status != models.StatusFound {
			t.Fatalf("expected found, got %v", out.Status)
		}
		if out.Track.DurationSec != nil || out.Track.ArtworkURL != nil || out.Track.TrackURL != nil {
			t.Errorf("expected nil optionals, got %+v", out.Track)
		}
	})

	t.Run("ServerErrorIsFailed", func(t *testing.T) {
		var hits atomic.Int32
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer done()

		out := p.SearchBest(context.Background(), models.SearchQuery{Candidate: models.Candidate{Title: "x"}})
		if out.Status != models.StatusFailed || out.Err == nil {
			t.Fatalf("expected failed outcome with error, got %+v", out)
		}
		if !shared.IsRequestKind(out.Err, shared.ErrValidation) {
			t.Errorf("expected validation failure, got %v", out.Err)
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 attempts, got %d", hits.Load())
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, ITunesResponse{Results: []ITunesItem{teenSpirit(false), teenSpirit(true)}})
		}))
		defer done()

		q := models.SearchQuery{Candidate: models.Candidate{Title: "Smells Like Teen Spirit", Artist: "Nirvana"}, PreferPreview: true}
		first := p.SearchBest(context.Background(), q)
		second := p.SearchBest(context.Background(), q)
		if first.Status != second.Status || first.Track.ID != second.Track.ID {
			t.Errorf("expected identical outcomes, got %+v and %+v", first.Track, second.Track)
		}
	})

	t.Run("EmptyCandidateSkipsRequest", func(t *testing.T) {
		var hits atomic.Int32
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer done()

		out := p.SearchBest(context.Background(), models.SearchQuery{})
		if out.Status != models.StatusNotFound || hits.Load() != 0 {
			t.Errorf("expected not-found without a request, got %v after %d hits", out.Status, hits.Load())
		}
	})
}

func TestITunesLookupByIDs(t *testing.T) {
	item := func(id int64, name string) ITunesItem {
		return ITunesItem{TrackID: id, TrackName: name, ArtistName: "Artist"}
	}

	t.Run("PreservesRequestOrder", func(t *testing.T) {
		var calls atomic.Int32
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.URL.Path != "/lookup" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			ids := strings.Split(r.URL.Query().Get("id"), ",")
			if len(ids) > 2 {
				t.Errorf("expected chunks of at most 2 ids, got %v", ids)
			}
			var results []ITunesItem
			// reversed, and id 2 is never returned
			for i := len(ids) - 1; i >= 0; i-- {
				switch ids[i] {
				case "1":
					results = append(results, item(1, "One"))
				case "3":
					results = append(results, item(3, "Three"))
				case "4":
					results = append(results, item(4, "Four"))
				}
			}
			tu.WriteJSON(t, w, ITunesResponse{Results: results})
		}))
		defer done()

		ids := []string{"3", "1", "2", "4"}
		out := p.LookupByIDs(context.Background(), ids, models.LookupOptions{Country: "US", ChunkSize: 2})

		if len(out) != len(ids) {
			t.Fatalf("expected %d outcomes, got %d", len(ids), len(out))
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 chunked requests, got %d", calls.Load())
		}
		for i, id := range ids {
			if out[i].ID != id {
				t.Errorf("outcome %d: expected id %s, got %s", i, id, out[i].ID)
			}
		}
		if out[0].Track.Title != "Three" || out[1].Track.Title != "One" || out[3].Track.Title != "Four" {
			t.Errorf("unexpected titles: %s %s %s", out[0].Track.Title, out[1].Track.Title, out[3].Track.Title)
		}
		if out[2].Status != models.StatusNotFound || out[2].Track != nil {
			t.Errorf("expected id 2 not found, got %+v", out[2])
		}
	})

	t.Run("FailedChunkDoesNotStopOthers", func(t *testing.T) {
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Query().Get("id"), "9") {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			tu.WriteJSON(t, w, ITunesResponse{Results: []ITunesItem{item(1, "One")}})
		}))
		defer done()

		out := p.LookupByIDs(context.Background(), []string{"9", "1"}, models.LookupOptions{ChunkSize: 1})
		if len(out) != 2 {
			t.Fatalf("expected 2 outcomes, got %d", len(out))
		}
		if out[0].Status != models.StatusFailed || out[0].Err == nil {
			t.Errorf("expected id 9 failed, got %+v", out[0])
		}
		if out[1].Status != models.StatusFound {
			t.Errorf("expected id 1 found, got %+v", out[1])
		}
	})

	t.Run("EmptyIDs", func(t *testing.T) {
		p, done := newTestITunes(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		}))
		defer done()

		if out := p.LookupByIDs(context.Background(), nil, models.LookupOptions{}); len(out) != 0 {
			t.Errorf("expected no outcomes, got %d", len(out))
		}
	})
}

func TestUpgradeArtwork(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://img/100x100bb.jpg", "https://img/600x600bb.jpg"},
		{"https://img/100x100.jpg", "https://img/600x600.jpg"},
		{"https://img/60x60bb.jpg", "https://img/60x60bb.jpg"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := upgradeArtwork(tt.in); got != tt.want {
			t.Errorf("upgradeArtwork(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
