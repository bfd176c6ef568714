package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// Automations retrieves every automation row, ordered by playlist id.
func (s *SQLiteStore) Automations(ctx context.Context) ([]models.AutomationConfig, error) {
	query := `
		SELECT id, playlist_id, owner, enabled, replace_in_source, replace_during_copy, copy, copy_destination_id
		FROM automations
		ORDER BY playlist_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}
	defer rows.Close()

	var autos []models.AutomationConfig
	for rows.Next() {
		var (
			auto        models.AutomationConfig
			destination sql.NullString
		)
		err := rows.Scan(
			&auto.ID,
			&auto.PlaylistID,
			&auto.Owner,
			&auto.Enabled,
			&auto.ReplaceInSource,
			&auto.ReplaceDuringCopy,
			&auto.Copy,
			&destination,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}
		if destination.Valid {
			auto.CopyDestinationID = destination.String
		}
		autos = append(autos, auto)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return autos, nil
}

// SaveAutomation inserts a new automation or overwrites an existing one by id.
func (s *SQLiteStore) SaveAutomation(ctx context.Context, auto *models.AutomationConfig) error {
	if err := auto.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if auto.ID == "" {
		auto.ID = shared.GenerateID()
		query := `
			INSERT INTO automations (id, playlist_id, owner, enabled, replace_in_source, replace_during_copy, copy, copy_destination_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := s.db.ExecContext(ctx, query,
			auto.ID, auto.PlaylistID, auto.Owner, auto.Enabled,
			auto.ReplaceInSource, auto.ReplaceDuringCopy, auto.Copy,
			nullable(auto.CopyDestinationID), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert automation: %w", err)
		}
		return nil
	}

	query := `
		UPDATE automations
		SET playlist_id = ?, owner = ?, enabled = ?, replace_in_source = ?, replace_during_copy = ?, copy = ?, copy_destination_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		auto.PlaylistID, auto.Owner, auto.Enabled,
		auto.ReplaceInSource, auto.ReplaceDuringCopy, auto.Copy,
		nullable(auto.CopyDestinationID), now, auto.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update automation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: automation %s", shared.ErrNotFound, auto.ID)
	}
	return nil
}

// PlaylistConfigs retrieves every playlist pair, ordered by source name.
func (s *SQLiteStore) PlaylistConfigs(ctx context.Context) ([]models.PlaylistConfig, error) {
	query := `
		SELECT id, source_id, source_name, destination_id, destination_name, user_name, sync
		FROM playlist_configs
		ORDER BY source_name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist configs: %w", err)
	}
	defer rows.Close()

	var configs []models.PlaylistConfig
	for rows.Next() {
		var (
			cfg         models.PlaylistConfig
			destination sql.NullString
		)
		err := rows.Scan(
			&cfg.ID,
			&cfg.SourceID,
			&cfg.SourceName,
			&destination,
			&cfg.DestinationName,
			&cfg.UserName,
			&cfg.Sync,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist config: %w", err)
		}
		if destination.Valid {
			cfg.DestinationID = destination.String
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return configs, nil
}

// SavePlaylistConfig inserts a new playlist pair or overwrites an existing
// one by id.
func (s *SQLiteStore) SavePlaylistConfig(ctx context.Context, cfg *models.PlaylistConfig) error {
	now := time.Now()
	if cfg.ID == "" {
		cfg.ID = shared.GenerateID()
		query := `
			INSERT INTO playlist_configs (id, source_id, source_name, destination_id, destination_name, user_name, sync, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := s.db.ExecContext(ctx, query,
			cfg.ID, cfg.SourceID, cfg.SourceName, nullable(cfg.DestinationID),
			cfg.DestinationName, cfg.UserName, cfg.Sync, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert playlist config: %w", err)
		}
		return nil
	}

	query := `
		UPDATE playlist_configs
		SET source_id = ?, source_name = ?, destination_id = ?, destination_name = ?, user_name = ?, sync = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		cfg.SourceID, cfg.SourceName, nullable(cfg.DestinationID),
		cfg.DestinationName, cfg.UserName, cfg.Sync, now, cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist config: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist config %s", shared.ErrNotFound, cfg.ID)
	}
	return nil
}

// MediaMappings retrieves every download-path mapping.
func (s *SQLiteStore) MediaMappings(ctx context.Context) ([]models.MediaMapping, error) {
	query := `
		SELECT id, source_id, local_path
		FROM media_mappings
		ORDER BY local_path ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query media mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.MediaMapping
	for rows.Next() {
		var mapping models.MediaMapping
		if err := rows.Scan(&mapping.ID, &mapping.SourceID, &mapping.LocalPath); err != nil {
			return nil, fmt.Errorf("failed to scan media mapping: %w", err)
		}
		mappings = append(mappings, mapping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return mappings, nil
}

// SaveMediaMapping records where a download for a source id landed on disk.
// Re-recording the same source id overwrites the stored path.
func (s *SQLiteStore) SaveMediaMapping(ctx context.Context, mapping *models.MediaMapping) error {
	if mapping.ID == "" {
		mapping.ID = shared.GenerateID()
	}
	query := `
		INSERT INTO media_mappings (id, source_id, local_path, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET local_path = excluded.local_path
	`
	if _, err := s.db.ExecContext(ctx, query, mapping.ID, mapping.SourceID, mapping.LocalPath, time.Now()); err != nil {
		return fmt.Errorf("failed to save media mapping: %w", err)
	}
	return nil
}
