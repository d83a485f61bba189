package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
)

const searchColumns = `id, sequence, query, status, candidate_count, track_count, failed_count, duration_ms, created_at, updated_at, deleted_at`

// SearchRepository implements models.Repository[*models.SearchRecord] for search history.
type SearchRepository struct {
	db *sql.DB
}

// NewSearchRepository creates a new SearchRepository with the given database connection
func NewSearchRepository(db *sql.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Create inserts a search history entry without tracks
func (r *SearchRepository) Create(search *models.SearchRecord) error {
	return r.CreateWithTracks(search, nil)
}

// CreateWithTracks inserts a search history entry and links the cached track rows in order.
//
// trackIDs are tracks.id values (see [TrackRepository.CacheAll]).
func (r *SearchRepository) CreateWithTracks(search *models.SearchRecord, trackIDs []string) error {
	if err := search.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "searches")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := shared.GenerateID()
	query := `
		INSERT INTO searches (id, sequence, query, status, candidate_count, track_count, failed_count, duration_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		id,
		sequence,
		search.Query,
		string(search.Status),
		search.CandidateCount,
		search.TrackCount,
		search.FailedCount,
		search.Duration.Milliseconds(),
		search.CreatedAt(),
		search.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert search: %w", err)
	}

	for pos, trackID := range trackIDs {
		if _, err := tx.Exec(`INSERT INTO search_tracks (search_id, track_id, position) VALUES (?, ?, ?)`, id, trackID, pos); err != nil {
			return fmt.Errorf("failed to link track %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit search: %w", err)
	}

	search.SetID(id)
	search.SetSequence(sequence)
	return nil
}

// Get retrieves a search by ID with its tracks loaded, excluding soft-deleted entries
func (r *SearchRepository) Get(id string) (*models.SearchRecord, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE id = ? AND deleted_at IS NULL`
	search, err := scanSearch(r.db.QueryRow(query, id))
	if err != nil {
		return nil, err
	}

	tracks, err := r.Tracks(id)
	if err != nil {
		return nil, err
	}
	search.Tracks = tracks
	return search, nil
}

// Tracks returns the tracks linked to a search in result order
func (r *SearchRepository) Tracks(searchID string) ([]models.Track, error) {
	query := `
		SELECT t.id, t.sequence, t.source, t.source_id, t.title, t.artist, t.album, t.duration,
		       t.artwork_url, t.preview_url, t.track_url, t.created_at, t.updated_at, t.deleted_at
		FROM search_tracks st
		JOIN tracks t ON t.id = st.track_id
		WHERE st.search_id = ?
		ORDER BY st.position ASC
	`

	rows, err := r.db.Query(query, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query search tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		p, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, p.Track())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// Delete soft-deletes a search by ID
func (r *SearchRepository) Delete(id string) error {
	query := `
		UPDATE searches
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete search: %w", err)
	}

	return expectAffected(result, "search", id)
}

// List retrieves searches matching the given criteria, newest first.
//
// Supported criteria: "status" (models.SearchStatus or string), "query" (exact match)
// and "limit" (int).
func (r *SearchRepository) List(criteria map[string]any) ([]*models.SearchRecord, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.SearchStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	if q, ok := criteria["query"].(string); ok && q != "" {
		query += " AND query = ?"
		args = append(args, q)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()

	var searches []*models.SearchRecord
	for rows.Next() {
		search, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, search)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return searches, nil
}

// Recent returns up to limit searches, newest first
func (r *SearchRepository) Recent(limit int) ([]*models.SearchRecord, error) {
	return r.List(map[string]any{"limit": limit})
}

func scanSearch(row scanner) (*models.SearchRecord, error) {
	var (
		id             string
		sequence       int
		query          string
		status         string
		candidateCount int
		trackCount     int
		failedCount    int
		durationMS     int64
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := row.Scan(&id, &sequence, &query, &status, &candidateCount, &trackCount, &failedCount, &durationMS, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSearchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan search: %w", err)
	}

	search := models.NewSearchRecord(sequence, query, models.SearchStatus(status))
	search.CandidateCount = candidateCount
	search.TrackCount = trackCount
	search.FailedCount = failedCount
	search.Duration = time.Duration(durationMS) * time.Millisecond
	search.SetID(id)
	search.SetCreatedAt(createdAt)
	search.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		search.SetDeletedAt(&deletedAt.Time)
	}

	return search, nil
}
