package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/trackx/internal/formatter"
	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/services"
)

// BatchExportOpts contains configuration for batch query exports.
type BatchExportOpts struct {
	Format     formatter.Format // Export format: json, csv, markdown, txt
	OutputDir  string           // Base output directory (default: trackx_export_{epoch})
	NumWorkers int              // Concurrent aggregations (default: 2, max: 5)
	RateLimit  float64          // Aggregations started per second (default: 1)
	Images     *services.Client // Optional client for markdown cover downloads
}

// QueryExportResult is the outcome of exporting one query.
type QueryExportResult struct {
	Index      int
	Query      string
	Status     models.SearchStatus
	TrackCount int
	Files      []string
	Error      error
}

// Success reports whether files were written for the query.
func (r QueryExportResult) Success() bool { return r.Error == nil }

// BatchExportResult summarizes a batch export.
type BatchExportResult struct {
	TotalQueries      int
	SuccessfulExports int
	FailedExports     int
	OutputDirectory   string
	ManifestPath      string
	Results           []QueryExportResult // in input order
}

type exportJob struct {
	index int
	query string
}

// BatchExport aggregates and exports multiple queries with a worker pool.
//
// Query starts are paced by a token bucket on top of the per-provider client throttles.
// Failed queries are recorded and do not stop the batch. A manifest summarizing every
// query is written to the output directory.
func (e *Engine) BatchExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	queries []string,
	opts BatchExportOpts,
) (*BatchExportResult, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries to export")
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("trackx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 5 {
		opts.NumWorkers = 5
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BatchExportResult{
		TotalQueries:    len(queries),
		OutputDirectory: opts.OutputDir,
		Results:         make([]QueryExportResult, 0, len(queries)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob, len(queries))
	results := make(chan QueryExportResult, len(queries))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, q := range queries {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(queries); j++ {
					results <- QueryExportResult{Index: j, Query: queries[j], Status: models.SearchFailed, Error: err}
				}
				return
			}
			e.sendProgress(prog, exportingUpdate(i+1, len(queries), q))
			jobs <- exportJob{index: i, query: q}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success() {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(queries), res.Query, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(queries), res.Query, res.Error))
		}
	}

	slices.SortFunc(result.Results, func(a, b QueryExportResult) int { return a.Index - b.Index })

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(result.manifest(opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that aggregates and exports queries from the jobs channel.
func (e *Engine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- QueryExportResult,
	opts BatchExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- QueryExportResult{Index: job.index, Query: job.query, Status: models.SearchFailed, Error: err}
			continue
		}
		results <- e.exportSingleQuery(ctx, job, opts)
	}
}

// exportSingleQuery aggregates one query and writes it in the requested format.
// A query without matches still produces an (empty) export.
func (e *Engine) exportSingleQuery(ctx context.Context, j exportJob, opts BatchExportOpts) QueryExportResult {
	res := QueryExportResult{Index: j.index, Query: j.query}

	agg, err := e.Aggregate(ctx, j.query, nil)
	res.Status = StatusOf(err)
	if err != nil && res.Status != models.SearchNoMatches {
		res.Error = err
		return res
	}

	list := agg.TrackList(res.Status)
	res.TrackCount = len(list.Tracks)

	base := fmt.Sprintf("%02d_%s", j.index+1, formatter.Slug(j.query))
	files, err := formatter.WriteExport(ctx, list, opts.Format, opts.OutputDir, base, opts.Images)
	if err != nil {
		res.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return res
	}
	res.Files = files
	return res
}

func (r *BatchExportResult) manifest(format formatter.Format) formatter.Manifest {
	m := formatter.Manifest{
		Format:      format,
		GeneratedAt: time.Now().UTC(),
		Total:       r.TotalQueries,
		Successful:  r.SuccessfulExports,
		Failed:      r.FailedExports,
		Entries:     make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := formatter.ManifestEntry{
			Query:      res.Query,
			Status:     string(res.Status),
			TrackCount: res.TrackCount,
		}
		for _, f := range res.Files {
			if rel, err := filepath.Rel(r.OutputDirectory, f); err == nil {
				f = rel
			}
			entry.Files = append(entry.Files, f)
		}
		if res.Error != nil {
			entry.Error = res.Error.Error()
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}
