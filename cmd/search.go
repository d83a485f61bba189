package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackx/internal/formatter"
	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
	"github.com/desertthunder/trackx/internal/tasks"
)

// Search suggests candidates for a free-text query and resolves them against the catalog.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	r.logger.Info("searching", "query", query, "suggester", r.config.Aggregate.Suggester, "catalog", r.config.Aggregate.Catalog)

	result, aggErr := r.aggregate(ctx, cmd.Bool("quiet"), func(progress chan<- tasks.ProgressUpdate) (*tasks.AggregateResult, error) {
		return r.engine.Aggregate(ctx, query, progress)
	})

	if cmd.Bool("save") && !errors.Is(aggErr, context.Canceled) {
		r.record(query, result, aggErr)
	}

	if aggErr != nil {
		return aggErr
	}

	return r.emit(result.TrackList(models.SearchOK), format, cmd.String("output"))
}

// Suggest prints the candidates the suggestion provider returns for a query, without resolving them.
func (r *Runner) Suggest(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	candidates, err := r.engine.Suggest(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(candidates, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Suggestions for '%s'", query))
	for i, c := range candidates {
		r.writePlain("%2d. %s\n", i+1, c.Term())
	}
	r.writePlain("\n%d candidates\n", len(candidates))
	return nil
}

// Resolve searches an explicit list of "Title - Artist" candidates and looks up the matches.
//
// Candidates come from the arguments and, with --file, one per line from a file ("-" for stdin).
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	candidates := models.CandidateQuery{}
	for _, arg := range cmd.Args().Slice() {
		if c := models.ParseCandidate(arg); !c.IsZero() {
			candidates = append(candidates, c)
		}
	}
	if path := cmd.String("file"); path != "" {
		lines, err := readLines(path)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if c := models.ParseCandidate(line); !c.IsZero() {
				candidates = append(candidates, c)
			}
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: at least one candidate", shared.ErrMissingArgument)
	}

	r.logger.Info("resolving candidates", "count", len(candidates), "catalog", r.config.Aggregate.Catalog)

	result, err := r.aggregate(ctx, cmd.Bool("quiet"), func(progress chan<- tasks.ProgressUpdate) (*tasks.AggregateResult, error) {
		return r.engine.ResolveCandidates(ctx, candidates, progress)
	})
	if err != nil {
		return err
	}

	return r.emit(result.TrackList(models.SearchOK), format, cmd.String("output"))
}

// Lookup fetches catalog records by provider id, reporting each id's outcome in request order.
func (r *Runner) Lookup(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()

	outcomes, err := r.engine.Lookup(ctx, ids)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type row struct {
			ID     string            `json:"id"`
			Status string            `json:"status"`
			Track  *models.TrackView `json:"track,omitempty"`
			Error  string            `json:"error,omitempty"`
		}
		rows := make([]row, len(outcomes))
		for i, o := range outcomes {
			rows[i] = row{ID: o.ID, Status: o.Status.String()}
			if o.Status == models.StatusFound {
				v := o.Track.View()
				rows[i].Track = &v
			}
			if o.Err != nil {
				rows[i].Error = o.Err.Error()
			}
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	tally := models.TallyLookups(outcomes)
	for _, o := range outcomes {
		switch o.Status {
		case models.StatusFound:
			r.writePlain("✓ %s  %s - %s [%s]\n", o.ID, o.Track.Artist, o.Track.Title, shared.FormatDuration(o.Track.DurationSec))
		case models.StatusNotFound:
			r.writePlain("- %s  not found\n", o.ID)
		default:
			r.writePlain("✗ %s  failed: %v\n", o.ID, o.Err)
		}
	}
	r.writePlain("\nFound %d, not found %d, failed %d\n", tally.Found, tally.NotFound, tally.Failed)

	if tally.Found == 0 && tally.Failed > 0 {
		return fmt.Errorf("%w: every lookup failed", shared.ErrServiceUnavailable)
	}
	return nil
}

// aggregate runs fn with a progress channel printed to the status writer unless quiet.
func (r *Runner) aggregate(ctx context.Context, quiet bool, fn func(chan<- tasks.ProgressUpdate) (*tasks.AggregateResult, error)) (*tasks.AggregateResult, error) {
	if quiet {
		return fn(nil)
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := r.progressPrinter(progress)
	result, err := fn(progress)
	close(progress)
	<-done
	return result, err
}

// record saves a finished search to the history database. Failures are logged only.
func (r *Runner) record(query string, result *tasks.AggregateResult, aggErr error) {
	recorder, db, err := r.openHistory()
	if err != nil {
		r.logger.Warn("search history unavailable", "error", err)
		return
	}
	defer db.Close()

	if _, err := recorder.Record(query, result, aggErr); err != nil {
		r.logger.Warn("failed to record search", "query", query, "error", err)
	}
}

// emit renders list and writes it to path, or to the output writer when path is empty.
func (r *Runner) emit(list *models.TrackList, format formatter.Format, path string) error {
	data, err := formatter.Render(format, list)
	if err != nil {
		return err
	}

	if path == "" {
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	r.logger.Info("export written", "path", path, "format", format, "tracks", len(list.Tracks))
	return r.writePlain("✓ Wrote %d tracks to %s\n", len(list.Tracks), path)
}

// readLines returns the non-blank lines of path, or of stdin when path is "-".
func readLines(path string) ([]string, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		if f, err = os.Open(path); err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}
