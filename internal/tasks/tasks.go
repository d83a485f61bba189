package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/services"
	"github.com/desertthunder/trackx/internal/shared"
)

const (
	DefaultSearchConcurrency = 8
	DefaultMaxCandidates     = 20
)

// AggregateResult contains all data from one resolution run.
//
// Searches is aligned with Candidates; Lookups is aligned with the deduplicated found ids.
type AggregateResult struct {
	Query      string                 // Free-text query, empty for explicit candidate lists
	Candidates models.CandidateQuery  // Candidates in suggestion order
	Searches   []models.SearchOutcome // One outcome per candidate
	Lookups    []models.LookupOutcome // One outcome per found id
	Tracks     []models.Track         // Found lookups in search order
	Duration   time.Duration          // Wall time of the run
}

// Views converts the resolved tracks to the caller-facing shape.
func (r *AggregateResult) Views() []models.TrackView {
	if r == nil {
		return []models.TrackView{}
	}
	return models.Views(r.Tracks)
}

// SearchTally counts search outcomes by status.
func (r *AggregateResult) SearchTally() models.Tally {
	return models.TallySearches(r.Searches)
}

// TrackList packages the result for export under the given status.
func (r *AggregateResult) TrackList(status models.SearchStatus) *models.TrackList {
	return &models.TrackList{
		Query:       r.Query,
		Status:      string(status),
		GeneratedAt: time.Now().UTC(),
		Tracks:      r.Tracks,
	}
}

// StatusOf maps an aggregation error onto the persisted search status.
func StatusOf(err error) models.SearchStatus {
	switch {
	case err == nil:
		return models.SearchOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.SearchFailed
	case errors.Is(err, shared.ErrNoMatches):
		return models.SearchNoMatches
	case errors.Is(err, shared.ErrServiceUnavailable):
		return models.SearchUnavailable
	default:
		return models.SearchFailed
	}
}

// Sessions opens request-scoped provider adapters. Each returned [io.Closer] releases the
// adapter's request client and must be closed by the caller.
type Sessions interface {
	Suggester() (services.Suggester, io.Closer, error)
	Catalog() (services.CatalogProvider, io.Closer, error)
}

// ProviderSessions opens one [services.Client] per provider as selected by the configuration.
type ProviderSessions struct {
	Config    *shared.Config
	Logger    *log.Logger
	Transport http.RoundTripper // optional, shared by every session client
}

func (p *ProviderSessions) logger() *log.Logger {
	if p.Logger == nil {
		return log.New(io.Discard)
	}
	return p.Logger
}

func (p *ProviderSessions) options(name string) services.ClientOptions {
	base := services.OptionsFromConfig(p.Config.Client, shared.WithLogger(p.logger(), "provider", name))
	base.Transport = p.Transport
	return services.SessionOptions(name, p.Config.Providers, base)
}

// Suggester opens a session for the configured suggestion provider.
func (p *ProviderSessions) Suggester() (services.Suggester, io.Closer, error) {
	name := p.Config.Aggregate.Suggester
	client := services.NewClient(p.options(name))
	s, err := services.NewSuggester(name, p.Config.Providers, client, p.logger())
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return s, client, nil
}

// Catalog opens a session for the configured catalog provider.
func (p *ProviderSessions) Catalog() (services.CatalogProvider, io.Closer, error) {
	name := p.Config.Aggregate.Catalog
	client := services.NewClient(p.options(name))
	c, err := services.NewCatalogProvider(name, p.Config.Providers, client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return c, client, nil
}

// Engine resolves free-text queries into catalog tracks.
type Engine struct {
	cfg      shared.AggregateConfig
	sessions Sessions
	logger   *log.Logger
}

// NewEngine creates an Engine. Non-positive concurrency and candidate limits take defaults.
func NewEngine(cfg shared.AggregateConfig, sessions Sessions, logger *log.Logger) *Engine {
	if cfg.SearchConcurrency <= 0 {
		cfg.SearchConcurrency = DefaultSearchConcurrency
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.LookupChunkSize <= 0 {
		cfg.LookupChunkSize = services.DefaultChunkSize
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{cfg: cfg, sessions: sessions, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Aggregate suggests candidates for query and resolves them against the catalog.
//
// Both provider sessions are opened up front and closed before returning. A failed
// suggestion is a hard [shared.ErrSuggestionFailed]. The result is returned alongside
// [shared.ErrNoMatches] and [shared.ErrServiceUnavailable] so callers can inspect it.
func (e *Engine) Aggregate(ctx context.Context, query string, progress chan<- ProgressUpdate) (*AggregateResult, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", shared.ErrInvalidInput)
	}

	suggester, sclose, err := e.sessions.Suggester()
	if err != nil {
		return nil, err
	}
	defer sclose.Close()

	catalog, cclose, err := e.sessions.Catalog()
	if err != nil {
		return nil, err
	}
	defer cclose.Close()

	logger := e.logger.With("query", query)
	result := &AggregateResult{Query: query}

	e.sendProgress(progress, suggestingUpdate(suggester.Name(), query))
	candidates, err := suggester.Suggest(ctx, query, e.cfg.MaxCandidates)
	if err != nil {
		result.Duration = time.Since(start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Info("aggregation cancelled", "phase", Suggest, "error", ctxErr)
			return result, fmt.Errorf("suggestion interrupted: %w", ctxErr)
		}
		logger.Error("suggestion failed", "suggester", suggester.Name(), "error", err)
		return result, fmt.Errorf("%w: %w", shared.ErrSuggestionFailed, err)
	}
	e.sendProgress(progress, suggestedUpdate(candidates))

	return e.resolve(ctx, logger, catalog, result, candidates, start, progress)
}

// Resolve searches and looks up an explicit candidate list against catalog.
func (e *Engine) Resolve(ctx context.Context, catalog services.CatalogProvider, candidates models.CandidateQuery, progress chan<- ProgressUpdate) (*AggregateResult, error) {
	return e.resolve(ctx, e.logger, catalog, &AggregateResult{}, candidates, time.Now(), progress)
}

// ResolveCandidates opens a catalog session and runs [Engine.Resolve].
func (e *Engine) ResolveCandidates(ctx context.Context, candidates models.CandidateQuery, progress chan<- ProgressUpdate) (*AggregateResult, error) {
	catalog, closer, err := e.sessions.Catalog()
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return e.Resolve(ctx, catalog, candidates, progress)
}

// Suggest opens a suggestion session and returns the deduplicated candidates for query.
func (e *Engine) Suggest(ctx context.Context, query string) (models.CandidateQuery, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", shared.ErrInvalidInput)
	}
	suggester, closer, err := e.sessions.Suggester()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	candidates, err := suggester.Suggest(ctx, query, e.cfg.MaxCandidates)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("suggestion interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrSuggestionFailed, err)
	}
	return candidates, nil
}

// Lookup opens a catalog session and fetches ids, one outcome per id in request order.
func (e *Engine) Lookup(ctx context.Context, ids []string) ([]models.LookupOutcome, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids", shared.ErrMissingArgument)
	}
	catalog, closer, err := e.sessions.Catalog()
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return catalog.LookupByIDs(ctx, ids, e.lookupOptions()), nil
}

func (e *Engine) lookupOptions() models.LookupOptions {
	return models.LookupOptions{Country: e.cfg.Country, Language: e.cfg.Language, ChunkSize: e.cfg.LookupChunkSize}
}

func (e *Engine) resolve(
	ctx context.Context,
	logger *log.Logger,
	catalog services.CatalogProvider,
	result *AggregateResult,
	candidates models.CandidateQuery,
	start time.Time,
	progress chan<- ProgressUpdate,
) (*AggregateResult, error) {
	result.Candidates = candidates
	finish := func() { result.Duration = time.Since(start) }

	if len(candidates) == 0 {
		finish()
		logger.Warn("no candidates to resolve")
		return result, fmt.Errorf("%w: no candidates", shared.ErrNoMatches)
	}

	result.Searches = e.searchAll(ctx, catalog, candidates, progress)
	if ctxErr := ctx.Err(); ctxErr != nil {
		finish()
		logger.Info("aggregation cancelled", "phase", Search, "error", ctxErr)
		return result, fmt.Errorf("search interrupted: %w", ctxErr)
	}
	tally := result.SearchTally()

	ids := foundIDs(result.Searches)
	if len(ids) == 0 {
		finish()
		if tally.Failed == tally.Total() {
			logger.Error("catalog unreachable", "catalog", catalog.Name(), "failed", tally.Failed, "error", firstSearchErr(result.Searches))
			return result, fmt.Errorf("%w: %s: all %d searches failed: %v", shared.ErrServiceUnavailable, catalog.Name(), tally.Failed, firstSearchErr(result.Searches))
		}
		logger.Warn("no catalog matches", "catalog", catalog.Name(), "not_found", tally.NotFound, "failed", tally.Failed)
		return result, fmt.Errorf("%w: none of %d candidates matched", shared.ErrNoMatches, len(candidates))
	}
	if tally.Failed > 0 {
		logger.Warn("some searches failed", "error", shared.ErrPartialBatch, "failed", tally.Failed, "total", tally.Total())
	}

	e.sendProgress(progress, lookupUpdate(len(ids)))
	result.Lookups = catalog.LookupByIDs(ctx, ids, e.lookupOptions())
	if ctxErr := ctx.Err(); ctxErr != nil {
		finish()
		logger.Info("aggregation cancelled", "phase", Lookup, "error", ctxErr)
		return result, fmt.Errorf("lookup interrupted: %w", ctxErr)
	}

	for _, o := range result.Lookups {
		if o.Status == models.StatusFound && o.Track != nil {
			result.Tracks = append(result.Tracks, *o.Track)
		}
	}
	finish()

	lookups := models.TallyLookups(result.Lookups)
	if len(result.Tracks) == 0 {
		if lookups.Failed == lookups.Total() {
			logger.Error("catalog lookup failed", "catalog", catalog.Name(), "ids", len(ids))
			return result, fmt.Errorf("%w: %s: lookup of %d ids failed", shared.ErrServiceUnavailable, catalog.Name(), len(ids))
		}
		logger.Warn("found ids missing from lookup", "ids", len(ids))
		return result, fmt.Errorf("%w: lookup returned none of %d ids", shared.ErrNoMatches, len(ids))
	}
	if lookups.Failed > 0 {
		logger.Warn("some lookups failed", "error", shared.ErrPartialBatch, "failed", lookups.Failed, "total", lookups.Total())
	}

	logger.Info("resolved tracks", "candidates", len(candidates), "tracks", len(result.Tracks), "duration", result.Duration)
	e.sendProgress(progress, completeUpdate(result))
	return result, nil
}

// searchAll runs SearchBest for every candidate with at most SearchConcurrency in flight.
// Outcomes are written by index, so the output order matches candidates.
func (e *Engine) searchAll(ctx context.Context, catalog services.CatalogProvider, candidates models.CandidateQuery, progress chan<- ProgressUpdate) []models.SearchOutcome {
	total := len(candidates)
	out := make([]models.SearchOutcome, total)
	sem := make(chan struct{}, e.cfg.SearchConcurrency)

	var (
		wg   sync.WaitGroup
		done atomic.Int32
	)

	e.sendProgress(progress, searchingUpdate(0, total, nil))

	for i, c := range candidates {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < total; j++ {
				out[j] = models.Failed(candidates[j], ctx.Err())
			}
			wg.Wait()
			return out
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			o := catalog.SearchBest(ctx, models.SearchQuery{
				Candidate:     c,
				Country:       e.cfg.Country,
				Language:      e.cfg.Language,
				PreferPreview: e.cfg.PreferPreview,
			})
			out[i] = o
			e.sendProgress(progress, searchingUpdate(int(done.Add(1)), total, &o))
		}()
	}

	wg.Wait()
	return out
}

// foundIDs returns the ids of found outcomes, first occurrence wins.
func foundIDs(outcomes []models.SearchOutcome) []string {
	seen := make(map[string]struct{}, len(outcomes))
	var ids []string
	for _, o := range outcomes {
		if o.Status != models.StatusFound || o.Track == nil {
			continue
		}
		if _, ok := seen[o.Track.ID]; ok {
			continue
		}
		seen[o.Track.ID] = struct{}{}
		ids = append(ids, o.Track.ID)
	}
	return ids
}

func firstSearchErr(outcomes []models.SearchOutcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
