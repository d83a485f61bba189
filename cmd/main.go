package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackx/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:    "trackx",
		Usage:   "Turn a free-text music request into a list of real catalog tracks",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (TOML or YAML)",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   runner.Load,
		Commands: runner.register(),
	}

	// SIGINT and SIGTERM cancel the root context so every command shuts down through ctx.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()

	switch code := exitCode(err); {
	case code == 130:
		logger.Warn("cancelled")
		os.Exit(code)
	case errors.Is(err, shared.ErrNoMatches):
		fmt.Fprintln(os.Stderr, "No matching tracks found.")
	case err != nil:
		logger.Fatalf("application error: %v", err)
	}
}

// exitCode maps a command error to the process exit status.
// No matches is not a failure; an interrupted run exits with 130.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, shared.ErrNoMatches):
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
