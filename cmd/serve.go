package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackx/internal/server"
	"github.com/desertthunder/trackx/internal/shared"
)

// Serve starts the HTTP API and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := int(cmd.Int("port")); port > 0 {
		cfg.Port = port
	}

	var history server.History
	if !cmd.Bool("no-history") {
		recorder, db, err := r.openHistory()
		if err != nil {
			return fmt.Errorf("failed to open search history: %w", err)
		}
		defer db.Close()
		history = recorder
	}

	srv := server.New(cfg.Addr(), r.engine, history, shared.WithLogger(r.logger, "component", "server"))
	r.writePlain("Listening on http://%s\n", cfg.Addr())
	return srv.Start(ctx)
}
