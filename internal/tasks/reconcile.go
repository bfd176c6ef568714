package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
)

const (
	// mismatchBatchSize entries per mismatch report message.
	mismatchBatchSize = 15
	// mismatchBatchCap bounds reports per cycle; the rest defer to the next run.
	mismatchBatchCap = 2
)

// ReconcileAll mirrors every sync-enabled cloud playlist into its library
// destination. Playlists are processed independently; one playlist's failure
// is recorded on its result and the walk continues.
func (e *Engine) ReconcileAll(ctx context.Context, userID string, progress chan<- ProgressUpdate) ([]PlaylistResult, error) {
	settings, err := e.store.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	configs, err := e.store.PlaylistConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist configs: %w", err)
	}

	items, err := e.library.Items(ctx, "Audio", []string{"Path", "ProviderIds"})
	if err != nil {
		return nil, fmt.Errorf("failed to list library items: %w", err)
	}

	byProvider := map[string]services.LibraryItem{}
	for _, item := range items {
		if pid := item.ProviderID(); pid != "" {
			byProvider[pid] = item
		}
	}

	resolver, err := NewIdentityResolver(settings.PathIDPattern, items)
	if err != nil {
		return nil, err
	}

	var results []PlaylistResult
	synced := 0
	for _, cfg := range configs {
		if cfg.Sync {
			synced++
		}
	}

	step := 0
	for _, cfg := range configs {
		if !cfg.Sync {
			continue
		}
		step++
		e.sendProgress(progress, playlistUpdate(step, synced, cfg.SourceName))

		result := e.reconcilePlaylist(ctx, cfg.SourceID, cfg.SourceName, cfg.DestinationID, userID, byProvider, resolver)
		results = append(results, result)

		if result.Err != nil {
			e.logger.Error("playlist reconciliation failed", "playlist", cfg.SourceName, "error", result.Err)
		}
	}

	e.reportMismatches(ctx, results)
	return results, nil
}

func (e *Engine) reconcilePlaylist(
	ctx context.Context,
	sourceID, sourceName, destinationID, userID string,
	byProvider map[string]services.LibraryItem,
	resolver *IdentityResolver,
) PlaylistResult {
	result := PlaylistResult{SourceID: sourceID, SourceName: sourceName}

	flat, err := e.streaming.FlatPlaylist(ctx, sourceID, true)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch source playlist: %w", err)
		result.Kind = classifyErr(err)
		return result
	}

	destItems, err := e.library.PlaylistItems(ctx, destinationID, userID, nil)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch destination playlist: %w", err)
		result.Kind = classifyErr(err)
		return result
	}
	inDest := map[string]bool{}
	for _, item := range destItems {
		inDest[item.ID] = true
	}

	var toAdd []string
	for _, entry := range flat.Entries {
		if item, ok := byProvider[entry.ID]; ok {
			result.Matched++
			if !inDest[item.ID] {
				toAdd = append(toAdd, item.ID)
			}
			continue
		}

		candidate, resolution := resolver.Resolve(entry)
		switch resolution {
		case ResolutionRecovered:
			if err := e.library.SetProviderID(ctx, candidate.LibraryID, userID, services.ProviderIDKey, entry.ID); err != nil {
				e.logger.Warn("failed to back-fill provider id", "item", candidate.Name, "error", err)
				continue
			}
			resolver.Claim(candidate.PathID)
			result.Recovered++
			if !inDest[candidate.LibraryID] {
				toAdd = append(toAdd, candidate.LibraryID)
			}

		case ResolutionMismatch:
			result.Mismatches = append(result.Mismatches, Mismatch{
				EntryID:    entry.ID,
				EntryTitle: entry.Title,
				Channel:    entry.Channel,
				LibraryID:  candidate.LibraryID,
				ItemName:   candidate.Name,
				Artists:    candidate.Artists,
			})

		case ResolutionNone:
			result.Unmatched++
			e.logger.Warn("no library match for playlist entry", "playlist", sourceName, "entry", entry.Title)
		}
	}

	result.Attempted = len(toAdd)
	if len(toAdd) > 0 {
		added, err := e.library.AddToPlaylist(ctx, destinationID, userID, toAdd)
		result.Added = added
		if err != nil {
			result.Err = err
			result.Kind = shared.KindPartialBatch
		}
	}

	return result
}

// reportMismatches posts recovery mismatches for human review, bounded to the
// first two batches of fifteen per cycle.
func (e *Engine) reportMismatches(ctx context.Context, results []PlaylistResult) {
	var all []Mismatch
	for _, result := range results {
		all = append(all, result.Mismatches...)
	}
	if len(all) == 0 {
		return
	}

	batches := shared.Chunk(all, mismatchBatchSize)
	if len(batches) > mismatchBatchCap {
		e.logger.Warn("deferring mismatch reports to next cycle",
			"deferred", len(all)-mismatchBatchCap*mismatchBatchSize)
		batches = batches[:mismatchBatchCap]
	}

	for _, batch := range batches {
		text := fmt.Sprintf("%d recovery mismatches need review", len(batch))
		if _, err := e.notifier.PostMessage(ctx, e.mismatchChannel, text, mismatchBlocks(batch)); err != nil {
			e.logger.Warn("failed to post mismatch report", "error", err)
		}
	}
}
