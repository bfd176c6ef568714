package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
)

// BackfillProviderIDs walks the media mappings, converts each download path
// to its library path with the settings search/replace pair, and stamps the
// provider id onto library items that are missing one.
func (e *Engine) BackfillProviderIDs(ctx context.Context, userID string) (*BackfillResult, error) {
	settings, err := e.store.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	mappings, err := e.store.MediaMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list media mappings: %w", err)
	}
	if len(mappings) == 0 {
		return &BackfillResult{}, nil
	}

	items, err := e.library.Items(ctx, "Audio", []string{"Path", "ProviderIds"})
	if err != nil {
		return nil, fmt.Errorf("failed to list library items: %w", err)
	}
	byPath := map[string]services.LibraryItem{}
	for _, item := range items {
		if item.Path != "" {
			byPath[item.Path] = item
		}
	}

	result := &BackfillResult{}
	for _, mapping := range mappings {
		result.Processed++

		libraryPath := mapping.LocalPath
		if settings.PathConvSearch != "" {
			libraryPath = strings.Replace(mapping.LocalPath, settings.PathConvSearch, settings.PathConvReplace, 1)
		}

		item, ok := byPath[libraryPath]
		if !ok {
			result.Failed++
			e.logger.Warn("no library item at mapped path", "path", libraryPath, "source_id", mapping.SourceID)
			continue
		}

		switch existing := item.ProviderID(); {
		case existing == mapping.SourceID:
			result.Current++
		case existing != "":
			result.Failed++
			e.logger.Warn("library item carries a different provider id",
				"item", item.Name, "existing", existing, "mapped", mapping.SourceID)
		default:
			if err := e.library.SetProviderID(ctx, item.ID, userID, services.ProviderIDKey, mapping.SourceID); err != nil {
				result.Failed++
				e.logger.Warn("failed to stamp provider id", "item", item.Name, "error", err)
				continue
			}
			result.Updated++
		}
	}

	return result, nil
}

// RefreshPlaylistConfigs revalidates every sync-enabled playlist pair:
// source titles are refreshed from the provider, destinations are looked up
// by id then by name, and missing destinations are created. Changed configs
// are persisted back to the store.
func (e *Engine) RefreshPlaylistConfigs(ctx context.Context, userID string) (*RefreshResult, error) {
	configs, err := e.store.PlaylistConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist configs: %w", err)
	}

	result := &RefreshResult{}
	for i := range configs {
		cfg := &configs[i]
		if !cfg.Sync {
			continue
		}
		result.Checked++
		changed := false

		flat, err := e.streaming.FlatPlaylist(ctx, cfg.SourceID, false)
		if err != nil {
			result.Failed++
			e.logger.Warn("failed to refresh source playlist", "playlist", cfg.SourceName, "error", err)
			continue
		}
		if flat.Title != "" && flat.Title != cfg.SourceName {
			cfg.SourceName = flat.Title
			changed = true
		}

		destID, created, err := e.ensureDestination(ctx, cfg.DestinationID, cfg.DestinationName, userID)
		if err != nil {
			result.Failed++
			e.logger.Warn("failed to validate destination playlist", "playlist", cfg.DestinationName, "error", err)
			continue
		}
		if created {
			result.Created++
		}
		if destID != cfg.DestinationID {
			cfg.DestinationID = destID
			changed = true
		}

		if changed {
			if err := e.store.SavePlaylistConfig(ctx, cfg); err != nil {
				result.Failed++
				e.logger.Warn("failed to persist playlist config", "playlist", cfg.SourceName, "error", err)
				continue
			}
			result.Updated++
		}
	}

	return result, nil
}

// ensureDestination resolves a library playlist by id, falls back to a name
// lookup, and creates the playlist when neither finds it.
func (e *Engine) ensureDestination(ctx context.Context, destinationID, destinationName, userID string) (string, bool, error) {
	if destinationID != "" {
		if _, err := e.library.Item(ctx, destinationID, userID); err == nil {
			return destinationID, false, nil
		} else if !errors.Is(err, shared.ErrNotFound) {
			return "", false, err
		}
	}

	playlists, err := e.library.Items(ctx, "Playlist", nil)
	if err != nil {
		return "", false, err
	}
	for _, pl := range playlists {
		if strings.EqualFold(pl.Name, destinationName) {
			return pl.ID, false, nil
		}
	}

	created, err := e.library.CreatePlaylist(ctx, destinationName, userID, "Audio")
	if err != nil {
		return "", false, err
	}
	return created, true, nil
}
