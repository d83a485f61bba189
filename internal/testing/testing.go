// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/trackx/internal/models"
)

// StubCatalog is a test double for services.CatalogProvider.
//
// Searches are answered from Tracks keyed by candidate term; terms in Failures fail.
// Lookups return every known track by id. It records the peak number of concurrent searches.
type StubCatalog struct {
	Tracks   map[string]models.Track // keyed by Candidate.Term()
	Failures map[string]error
	Delay    time.Duration

	mu          sync.Mutex
	searched    []string
	lookedUp    [][]string
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (s *StubCatalog) Name() string { return "stub" }

func (s *StubCatalog) SearchBest(ctx context.Context, q models.SearchQuery) models.SearchOutcome {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		peak := s.maxInflight.Load()
		if n <= peak || s.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}

	term := q.Candidate.Term()
	s.mu.Lock()
	s.searched = append(s.searched, term)
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return models.Failed(q.Candidate, ctx.Err())
		case <-time.After(s.Delay):
		}
	}

	if err, ok := s.Failures[term]; ok {
		return models.Failed(q.Candidate, err)
	}
	if t, ok := s.Tracks[term]; ok {
		return models.Found(q.Candidate, t)
	}
	return models.NotFound(q.Candidate)
}

func (s *StubCatalog) LookupByIDs(_ context.Context, ids []string, _ models.LookupOptions) []models.LookupOutcome {
	s.mu.Lock()
	s.lookedUp = append(s.lookedUp, append([]string(nil), ids...))
	s.mu.Unlock()

	byID := make(map[string]models.Track, len(s.Tracks))
	for _, t := range s.Tracks {
		byID[t.ID] = t
	}

	out := make([]models.LookupOutcome, len(ids))
	for i, id := range ids {
		if t, ok := byID[id]; ok {
			out[i] = models.LookupFound(id, t)
		} else {
			out[i] = models.LookupNotFound(id)
		}
	}
	return out
}

// Searched returns the searched terms in call order.
func (s *StubCatalog) Searched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searched...)
}

// LookupCalls returns the id batches passed to LookupByIDs.
func (s *StubCatalog) LookupCalls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.lookedUp...)
}

// MaxInflight is the highest number of searches observed running at once.
func (s *StubCatalog) MaxInflight() int { return int(s.maxInflight.Load()) }

// StubSuggester is a test double for services.Suggester.
type StubSuggester struct {
	Candidates models.CandidateQuery
	Err        error
	Calls      atomic.Int32
}

func (s *StubSuggester) Name() string { return "stub" }

func (s *StubSuggester) Suggest(_ context.Context, _ string, max int) (models.CandidateQuery, error) {
	s.Calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	if max > 0 && len(s.Candidates) > max {
		return s.Candidates[:max], nil
	}
	return s.Candidates, nil
}

// MockRoundTripper returns a fixed response or error and counts calls.
type MockRoundTripper struct {
	response *http.Response
	err      error
	calls    atomic.Int32
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.calls.Add(1)
	return m.response, m.err
}

// Calls is the number of round trips made.
func (m *MockRoundTripper) Calls() int { return int(m.calls.Load()) }

// WriteJSON encodes v onto w, failing the test on error.
func WriteJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to write response: %v", err)
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
