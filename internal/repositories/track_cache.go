package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
)

// Cache stores a resolved track, refreshing the cached copy when the (source, source_id)
// pair is already known. It returns the stored row.
func (r *TrackRepository) Cache(track models.Track) (*models.PersistedTrack, error) {
	existing, err := r.GetBySourceID(track.Source, track.ID)
	switch {
	case err == nil:
		refreshed := models.NewPersistedTrack(existing.Sequence(), track)
		refreshed.SetID(existing.ID())
		refreshed.SetCreatedAt(existing.CreatedAt())
		if err := r.Update(refreshed); err != nil {
			return nil, fmt.Errorf("failed to refresh cached track: %w", err)
		}
		return refreshed, nil
	case !errors.Is(err, shared.ErrTrackNotFound):
		return nil, err
	}

	persisted := models.NewPersistedTrack(0, track)
	if err := r.Create(persisted); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return r.GetBySourceID(track.Source, track.ID)
		}
		return nil, fmt.Errorf("failed to cache track: %w", err)
	}
	return persisted, nil
}

// CacheAll stores tracks in order and returns their row ids, aligned with tracks.
func (r *TrackRepository) CacheAll(tracks []models.Track) ([]string, error) {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		p, err := r.Cache(t)
		if err != nil {
			return nil, err
		}
		ids[i] = p.ID()
	}
	return ids, nil
}
