package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/mattn/go-sqlite3"
)

const mediaColumns = "id, source_id, title, artist, category, album, duration, views, thumbnail_url, substitution_id, ignored"

// Media retrieves a cached item by source id, excluding soft-deleted rows.
func (s *SQLiteStore) Media(ctx context.Context, sourceID string) (*models.MediaItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM media_items
		WHERE source_id = ? AND deleted_at IS NULL
		LIMIT 1
	`, mediaColumns)

	item, err := scanMedia(s.db.QueryRowContext(ctx, query, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: media %s", shared.ErrNotFound, sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan media item: %w", err)
	}
	return item, nil
}

// ListMedia retrieves all cached items matching the filter, excluding
// soft-deleted rows, ordered by sequence.
func (s *SQLiteStore) ListMedia(ctx context.Context, filter services.MediaFilter) ([]models.MediaItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM media_items
		WHERE deleted_at IS NULL
	`, mediaColumns)

	args := []any{}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	if filter.Unresolved {
		query += " AND substitution_id IS NULL AND ignored = 0"
	}

	query += " ORDER BY sequence ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query media items: %w", err)
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// CreateMedia inserts a newly observed item with generated ID and sequence.
// The category+source-id unique constraint maps to shared.ErrDuplicate.
func (s *SQLiteStore) CreateMedia(ctx context.Context, item *models.MediaItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, s.db, "media_items")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	now := time.Now()

	query := `
		INSERT INTO media_items (id, sequence, source_id, title, artist, category, album, duration, views, thumbnail_url, substitution_id, ignored, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		id,
		sequence,
		item.SourceID,
		item.Title,
		item.Artist,
		string(item.Category),
		item.Album,
		item.Duration,
		item.Views,
		item.ThumbnailURL,
		nullable(item.SubstitutionID),
		item.Ignore,
		now,
		now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: media %s", shared.ErrDuplicate, item.SourceID)
		}
		return fmt.Errorf("failed to insert media item: %w", err)
	}

	item.StoreID = id
	return nil
}

// UpdateMedia overwrites an existing item's mutable fields.
func (s *SQLiteStore) UpdateMedia(ctx context.Context, item *models.MediaItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if item.StoreID == "" {
		return fmt.Errorf("%w: media item has no store id", shared.ErrInvalidInput)
	}

	query := `
		UPDATE media_items
		SET title = ?, artist = ?, album = ?, duration = ?, views = ?, thumbnail_url = ?, substitution_id = ?, ignored = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query,
		item.Title,
		item.Artist,
		item.Album,
		item.Duration,
		item.Views,
		item.ThumbnailURL,
		nullable(item.SubstitutionID),
		item.Ignore,
		time.Now(),
		item.StoreID,
	)
	if err != nil {
		return fmt.Errorf("failed to update media item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: media %s", shared.ErrNotFound, item.SourceID)
	}

	return nil
}

// DeleteMedia soft-deletes a cached item by source id.
func (s *SQLiteStore) DeleteMedia(ctx context.Context, sourceID string) error {
	query := `
		UPDATE media_items
		SET deleted_at = ?
		WHERE source_id = ? AND deleted_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, time.Now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete media item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: media %s", shared.ErrNotFound, sourceID)
	}

	return nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(row scanner) (*models.MediaItem, error) {
	var (
		item           models.MediaItem
		category       string
		substitutionID sql.NullString
	)

	err := row.Scan(
		&item.StoreID,
		&item.SourceID,
		&item.Title,
		&item.Artist,
		&category,
		&item.Album,
		&item.Duration,
		&item.Views,
		&item.ThumbnailURL,
		&substitutionID,
		&item.Ignore,
	)
	if err != nil {
		return nil, err
	}

	item.Category = models.Category(category)
	if substitutionID.Valid {
		item.SubstitutionID = substitutionID.String
	}
	return &item, nil
}

// nullable maps an empty string to NULL so unset optional columns stay NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
