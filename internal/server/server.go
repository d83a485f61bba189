package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, request ids, panic recovery, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for self-routing HTTP handlers.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Aggregator runs one resolution for a free-text query. Implemented by [tasks.Engine].
type Aggregator interface {
	Aggregate(ctx context.Context, query string, progress chan<- tasks.ProgressUpdate) (*tasks.AggregateResult, error)
}

// History records runs and lists past ones. Implemented by repositories.Recorder.
type History interface {
	Record(query string, result *tasks.AggregateResult, err error) (*models.SearchRecord, error)
	Recent(limit int) ([]*models.SearchRecord, error)
}

const shutdownTimeout = 5 * time.Second

// Server serves the search API. History is optional.
type Server struct {
	addr    string
	engine  Aggregator
	history History
	logger  *log.Logger
	router  Router
}

// New creates a Server listening on addr and registers its routes.
func New(addr string, engine Aggregator, history History, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{addr: addr, engine: engine, history: history, logger: logger}
	s.router = s.routes()
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// run aggregates query and records the run when history is configured.
// Recording failures are logged and never change the response.
func (s *Server) run(ctx context.Context, query string, progress chan<- tasks.ProgressUpdate) (*tasks.AggregateResult, error) {
	result, err := s.engine.Aggregate(ctx, query, progress)
	if s.history != nil && !errors.Is(err, context.Canceled) {
		if _, recErr := s.history.Record(query, result, err); recErr != nil {
			s.logger.Warn("failed to record search", "query", query, "error", recErr)
		}
	}
	return result, err
}
