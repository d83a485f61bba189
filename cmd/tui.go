package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackx/internal/shared"
	"github.com/desertthunder/trackx/internal/ui"
)

// TUI launches the interactive terminal UI for searching tracks.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, logFile, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	prev := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(prev)

	var recorder ui.Recorder
	if !cmd.Bool("no-history") {
		rec, db, err := r.openHistory()
		if err != nil {
			r.logger.Warn("search history unavailable", "error", err)
		} else {
			defer db.Close()
			recorder = rec
		}
	}

	model := ui.NewModel(ctx, r.engine, recorder, fileLogger)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
