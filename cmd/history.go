package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
)

// History lists recent searches from the history database.
//
// With --id the stored tracks of a single search are printed instead.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	recorder, db, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	if id := cmd.String("id"); id != "" {
		search, err := recorder.Searches().Get(id)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(historyView(search, true), cmd.Bool("pretty"))
		}

		r.writePlainHeader(fmt.Sprintf("'%s' (%s)", search.Query, search.Status))
		for i, t := range search.Tracks {
			r.writePlain("%2d. %s - %s [%s]\n", i+1, t.Artist, t.Title, shared.FormatDuration(t.DurationSec))
		}
		return nil
	}

	searches, err := recorder.Recent(int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]map[string]any, len(searches))
		for i, s := range searches {
			views[i] = historyView(s, false)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(searches) == 0 {
		r.writePlain("No searches recorded yet\n")
		return nil
	}

	r.writePlainHeader("Recent searches")
	for _, s := range searches {
		r.writePlain("%s  %-11s %3d tracks  %s\n",
			s.CreatedAt().Local().Format(time.DateTime), s.Status, s.TrackCount, shared.Truncate(s.Query, 50))
		r.writePlain("    id: %s\n", s.ID())
	}
	return nil
}

func historyView(s *models.SearchRecord, withTracks bool) map[string]any {
	v := map[string]any{
		"id":         s.ID(),
		"query":      s.Query,
		"status":     s.Status,
		"candidates": s.CandidateCount,
		"tracks":     s.TrackCount,
		"failed":     s.FailedCount,
		"durationMs": s.Duration.Milliseconds(),
		"createdAt":  s.CreatedAt(),
	}
	if withTracks {
		v["results"] = models.Views(s.Tracks)
	}
	return v
}
