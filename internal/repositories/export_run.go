package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
)

// ExportRunRepository records finished exports.
type ExportRunRepository struct {
	db *sql.DB
}

func NewExportRunRepository(db *sql.DB) *ExportRunRepository {
	return &ExportRunRepository{db: db}
}

// SaveRun inserts run, generating an ID and creation time when missing.
func (r *ExportRunRepository) SaveRun(run *models.ExportRun) error {
	if run.PlaylistID == "" {
		return fmt.Errorf("%w: export run without playlist id", shared.ErrInvalidInput)
	}
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now()
	}

	query := `
		INSERT INTO export_runs (id, playlist_id, playlist_name, total, matched, unresolved, skipped, file_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		run.ID,
		run.PlaylistID,
		run.PlaylistName,
		run.Total,
		run.Matched,
		run.Unresolved,
		run.Skipped,
		run.FilePath,
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert export run: %w", err)
	}
	return nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns every run.
func (r *ExportRunRepository) List(limit int) ([]models.ExportRun, error) {
	query := `
		SELECT id, playlist_id, playlist_name, total, matched, unresolved, skipped, file_path, created_at
		FROM export_runs
		ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(query, args...)
}

// ForPlaylist returns the runs of one playlist, newest first.
func (r *ExportRunRepository) ForPlaylist(playlistID string) ([]models.ExportRun, error) {
	query := `
		SELECT id, playlist_id, playlist_name, total, matched, unresolved, skipped, file_path, created_at
		FROM export_runs
		WHERE playlist_id = ?
		ORDER BY created_at DESC
	`
	return r.query(query, playlistID)
}

func (r *ExportRunRepository) query(query string, args ...any) ([]models.ExportRun, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list export runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ExportRun
	for rows.Next() {
		var run models.ExportRun
		if err := rows.Scan(
			&run.ID,
			&run.PlaylistID,
			&run.PlaylistName,
			&run.Total,
			&run.Matched,
			&run.Unresolved,
			&run.Skipped,
			&run.FilePath,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate export runs: %w", err)
	}
	return runs, nil
}
