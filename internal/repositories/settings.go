package repositories

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/playsync/internal/models"
)

// Settings assembles the tunables bag from the key/value table, caching the
// result until invalidated.
func (s *SQLiteStore) Settings(ctx context.Context) (*models.Settings, error) {
	s.mu.Lock()
	cached := s.settings
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, val FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := &models.Settings{}
	for rows.Next() {
		var key, val string
		if err := rows.Scan(&key, &val); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		switch key {
		case "extract_source_id_regex":
			settings.PathIDPattern = val
		case "path_conv_search":
			settings.PathConvSearch = val
		case "path_conv_replace":
			settings.PathConvReplace = val
		case "library_user_name":
			settings.LibraryUserName = val
		case "sample_size":
			if n, err := strconv.Atoi(val); err == nil {
				settings.SampleSize = n
			}
		case "wait_interval":
			settings.WaitInterval = val
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return settings, nil
}

// InvalidateSettings drops the cached tunables so the next read refetches.
func (s *SQLiteStore) InvalidateSettings() {
	s.mu.Lock()
	s.settings = nil
	s.mu.Unlock()
}

// SetSetting writes one key and invalidates the cache.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, val)
		VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET val = excluded.val
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	s.InvalidateSettings()
	return nil
}
