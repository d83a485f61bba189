package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackx/internal/formatter"
	"github.com/desertthunder/trackx/internal/services"
	"github.com/desertthunder/trackx/internal/shared"
	"github.com/desertthunder/trackx/internal/tasks"
)

// Export runs one search per query and writes every result set to an output directory.
//
// Queries come from the arguments and, with --file, one per line. A manifest summarizing
// each query is written alongside the exports.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	queries := []string{}
	for _, arg := range cmd.Args().Slice() {
		if q := strings.TrimSpace(arg); q != "" {
			queries = append(queries, q)
		}
	}
	if path := cmd.String("file"); path != "" {
		lines, err := readLines(path)
		if err != nil {
			return err
		}
		queries = append(queries, lines...)
	}
	if len(queries) == 0 {
		return fmt.Errorf("%w: at least one query", shared.ErrMissingArgument)
	}

	opts := tasks.BatchExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output-dir"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  float64(cmd.Int("rate")),
	}

	if format == formatter.FormatMarkdown && !cmd.Bool("no-images") {
		images := services.NewClient(services.OptionsFromConfig(r.config.Client, shared.WithLogger(r.logger, "client", "images")))
		defer images.Close()
		opts.Images = images
	}

	r.logger.Info("starting export", "queries", len(queries), "format", format, "workers", opts.NumWorkers)
	r.writePlain("Exporting %d queries as %s...\n\n", len(queries), format)

	progress := make(chan tasks.ProgressUpdate, 64)
	done := r.progressPrinter(progress)
	result, err := r.engine.BatchExport(ctx, progress, queries, opts)
	close(progress)
	<-done

	if err != nil && result == nil {
		return fmt.Errorf("export failed: %w", err)
	}

	r.writePlainln("")
	r.writePlainHeader("Export Complete")
	r.writePlain("Queries: %d\n", result.TotalQueries)
	r.writePlain("Successful: %d\n", result.SuccessfulExports)
	r.writePlain("Failed: %d\n", result.FailedExports)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	if result.FailedExports > 0 {
		r.writePlain("\nFailed queries:\n")
		for _, res := range result.Results {
			if !res.Success() {
				r.writePlain("  - %s: %v\n", res.Query, res.Error)
			}
		}
	}

	if err != nil {
		return err
	}
	if result.SuccessfulExports == 0 {
		return fmt.Errorf("%w: no query could be exported", shared.ErrServiceUnavailable)
	}
	return nil
}
