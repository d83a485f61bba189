package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/tasks"
)

// Recorder persists aggregation runs: resolved tracks go to the track cache and the run
// itself to the search history.
type Recorder struct {
	tracks   *TrackRepository
	searches *SearchRepository
}

// NewRecorder creates a Recorder over db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{tracks: NewTrackRepository(db), searches: NewSearchRepository(db)}
}

// Searches exposes the history repository for read paths.
func (r *Recorder) Searches() *SearchRepository { return r.searches }

// Recent returns up to limit recorded runs, newest first.
func (r *Recorder) Recent(limit int) ([]*models.SearchRecord, error) {
	return r.searches.Recent(limit)
}

// Record saves one run. aggErr is the error returned alongside result and decides the stored
// status. A nil result (the run never started) is recorded without counts.
func (r *Recorder) Record(query string, result *tasks.AggregateResult, aggErr error) (*models.SearchRecord, error) {
	search := models.NewSearchRecord(0, query, tasks.StatusOf(aggErr))

	var trackIDs []string
	if result != nil {
		tally := result.SearchTally()
		search.CandidateCount = len(result.Candidates)
		search.TrackCount = len(result.Tracks)
		search.FailedCount = tally.Failed
		search.Duration = result.Duration

		ids, err := r.tracks.CacheAll(result.Tracks)
		if err != nil {
			return nil, fmt.Errorf("failed to cache tracks: %w", err)
		}
		trackIDs = ids
	}

	if err := r.searches.CreateWithTracks(search, trackIDs); err != nil {
		return nil, err
	}
	if result != nil {
		search.Tracks = result.Tracks
	}
	return search, nil
}
