package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
	"github.com/desertthunder/trackx/internal/tasks"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query      string             `json:"query"`
	Status     string             `json:"status"` // ok or no_matches
	Tracks     []models.TrackView `json:"tracks"`
	Candidates int                `json:"candidates"`
	Failed     int                `json:"failed"`
	DurationMS int64              `json:"durationMs"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

// HistoryEntry is one past search.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Status     string    `json:"status"`
	Candidates int       `json:"candidates"`
	Tracks     int       `json:"tracks"`
	Failed     int       `json:"failed"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *Server) routes() Router {
	r := NewChiRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(s.logger), middleware.Recoverer)

	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(s.handleHealth))
	r.Handle(http.MethodGet, "/search", http.HandlerFunc(s.handleSearch))
	r.Handler(&StreamHandler{server: s})
	r.Handle(http.MethodGet, "/history", http.HandlerFunc(s.handleHistory))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing query parameter q"})
		return
	}

	result, err := s.run(r.Context(), query, nil)
	status, body := searchBody(query, result, err)
	writeJSON(w, status, body)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "search history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.Recent(limit)
	if err != nil {
		s.logger.Error("failed to load history", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load history"})
		return
	}

	entries := make([]HistoryEntry, len(records))
	for i, rec := range records {
		entries[i] = HistoryEntry{
			ID:         rec.ID(),
			Query:      rec.Query,
			Status:     string(rec.Status),
			Candidates: rec.CandidateCount,
			Tracks:     rec.TrackCount,
			Failed:     rec.FailedCount,
			DurationMS: rec.Duration.Milliseconds(),
			CreatedAt:  rec.CreatedAt(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": entries})
}

// searchBody maps an aggregation outcome onto an HTTP status and body.
//
// No matches is a successful response with an empty track list. Suggestion and catalog
// outages are 502; configuration problems are 500.
func searchBody(query string, result *tasks.AggregateResult, err error) (int, any) {
	status := tasks.StatusOf(err)
	switch {
	case err == nil || errors.Is(err, shared.ErrNoMatches):
		resp := SearchResponse{
			Query:  query,
			Status: string(status),
			Tracks: result.Views(),
		}
		if result != nil {
			resp.Candidates = len(result.Candidates)
			resp.Failed = result.SearchTally().Failed
			resp.DurationMS = result.Duration.Milliseconds()
		}
		return http.StatusOK, resp
	case errors.Is(err, shared.ErrSuggestionFailed), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusBadGateway, ErrorResponse{Error: err.Error(), Status: string(status)}
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Status: string(status)}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
