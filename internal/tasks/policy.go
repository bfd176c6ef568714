package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
)

// placeholderThumbnailURL is captured when an entry carries no thumbnails.
const placeholderThumbnailURL = "https://upload.wikimedia.org/wikipedia/commons/thumb/a/ac/No_image_available.svg/300px-No_image_available.svg.png"

// RunAutomations applies the three substitution policies to every active
// automation. Automations run independently: a failure is recorded on the
// automation's result and the walk continues.
//
// Returns the per-automation results, the unresolved video ids grouped by
// owning account, and how many newly observed items were captured into the
// metadata cache.
func (e *Engine) RunAutomations(ctx context.Context, progress chan<- ProgressUpdate) ([]AutomationResult, map[string][]string, int, error) {
	automations, err := e.store.Automations(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to list automations: %w", err)
	}

	cached, err := e.store.ListMedia(ctx, services.MediaFilter{})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to list cached media: %w", err)
	}
	mediaIndex := map[string]models.MediaItem{}
	for _, item := range cached {
		mediaIndex[item.SourceID] = item
	}

	active := 0
	for _, auto := range automations {
		if auto.Active() {
			active++
		}
	}

	var results []AutomationResult
	pending := map[string]*models.MediaItem{}
	unresolvedByOwner := map[string][]string{}
	seenUnresolved := map[string]bool{}

	step := 0
	for _, auto := range automations {
		if !auto.Active() {
			continue
		}
		step++
		e.sendProgress(progress, automationUpdate(step, active, auto.PlaylistID))

		if err := auto.Validate(); err != nil {
			results = append(results, AutomationResult{
				PlaylistID: auto.PlaylistID,
				Kind:       shared.KindFatal,
				Err:        err,
			})
			continue
		}

		result := e.runAutomation(ctx, auto, mediaIndex, pending, func(videoID string) {
			if seenUnresolved[auto.Owner+"/"+videoID] {
				return
			}
			seenUnresolved[auto.Owner+"/"+videoID] = true
			unresolvedByOwner[auto.Owner] = append(unresolvedByOwner[auto.Owner], videoID)
		})
		results = append(results, result)

		if result.Err != nil {
			e.logger.Error("automation failed", "playlist", auto.PlaylistID, "error", result.Err)
		}
	}

	captured := 0
	for _, item := range pending {
		if err := e.captureMedia(ctx, item); err != nil {
			e.logger.Warn("failed to capture media", "source_id", item.SourceID, "error", err)
			continue
		}
		captured++
	}

	return results, unresolvedByOwner, captured, nil
}

func (e *Engine) runAutomation(
	ctx context.Context,
	auto models.AutomationConfig,
	mediaIndex map[string]models.MediaItem,
	pending map[string]*models.MediaItem,
	markUnresolved func(videoID string),
) AutomationResult {
	result := AutomationResult{PlaylistID: auto.PlaylistID}

	svc, err := e.streamingFor(ctx, auto.Owner)
	if err != nil {
		result.Err = err
		result.Kind = classifyErr(err)
		return result
	}

	playlist, err := svc.Playlist(ctx, auto.PlaylistID)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch playlist: %w", err)
		result.Kind = classifyErr(err)
		return result
	}

	// Membership snapshot at fetch time; copy works from this even after
	// replace_in_source has mutated the live playlist.
	snapshot := playlist.Entries
	inSource := map[string]bool{}
	for _, id := range playlist.EntryIDs() {
		inSource[id] = true
	}

	replaceable := map[string]string{} // video id -> substitution song id
	for _, entry := range playlist.Entries {
		cachedItem, known := mediaIndex[entry.ID]
		if !known {
			if _, queued := pending[entry.ID]; !queued {
				pending[entry.ID] = captureFromEntry(entry)
			}
		}

		if entry.Category != models.CategoryVideo {
			continue
		}
		switch {
		case known && cachedItem.Resolved():
			replaceable[entry.ID] = cachedItem.SubstitutionID
		case known && cachedItem.Ignore:
			// soft-ignored, leave alone
		default:
			markUnresolved(entry.ID)
			result.Unresolved++
		}
	}

	if auto.ReplaceInSource {
		added, removed, err := e.replaceInSource(ctx, svc, auto.PlaylistID, playlist, inSource, replaceable)
		result.SourceAdded = added
		result.SourceRemoved = removed
		if err != nil {
			result.Err = err
			result.Kind = classifyErr(err)
			return result
		}
	}

	if auto.Copy {
		copied, err := e.copyPlaylist(ctx, svc, auto, snapshot, replaceable)
		result.Copied = copied
		if err != nil {
			result.Err = err
			result.Kind = classifyErr(err)
			return result
		}
	}

	return result
}

// replaceInSource adds substitution songs missing from the playlist, then
// removes the resolved videos. Two independent mutations; a crash between
// them self-heals on the next cycle.
func (e *Engine) replaceInSource(
	ctx context.Context,
	svc services.StreamingService,
	playlistID string,
	playlist *services.SourcePlaylist,
	inSource map[string]bool,
	replaceable map[string]string,
) (added, removed int, err error) {
	var toAdd []string
	seen := map[string]bool{}
	for _, songID := range replaceable {
		if !inSource[songID] && !seen[songID] {
			seen[songID] = true
			toAdd = append(toAdd, songID)
		}
	}
	if len(toAdd) > 0 {
		if err := svc.AddPlaylistItems(ctx, playlistID, toAdd); err != nil {
			return 0, 0, fmt.Errorf("failed to add substitutions: %w", err)
		}
		added = len(toAdd)
	}

	var toRemove []services.SourceEntry
	for _, entry := range playlist.Entries {
		if _, ok := replaceable[entry.ID]; ok {
			toRemove = append(toRemove, entry)
		}
	}
	if len(toRemove) > 0 {
		if err := svc.RemovePlaylistItems(ctx, playlistID, toRemove); err != nil {
			return added, 0, fmt.Errorf("failed to remove resolved videos: %w", err)
		}
		removed = len(toRemove)
	}

	return added, removed, nil
}

// copyPlaylist copies the source membership snapshot into the destination.
// With replace_during_copy, songs pass through, resolved videos are swapped
// for their substitutions, and unresolved videos are dropped. Destination
// membership is re-subtracted after substitution since a substitution target
// may already be present.
func (e *Engine) copyPlaylist(
	ctx context.Context,
	svc services.StreamingService,
	auto models.AutomationConfig,
	snapshot []services.SourceEntry,
	replaceable map[string]string,
) (int, error) {
	dest, err := svc.FlatPlaylist(ctx, auto.CopyDestinationID, true)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch copy destination: %w", err)
	}
	inDest := map[string]bool{}
	for _, entry := range dest.Entries {
		inDest[entry.ID] = true
	}

	var toCopy []string
	seen := map[string]bool{}
	for _, entry := range snapshot {
		if inDest[entry.ID] {
			continue
		}
		final := entry.ID
		if auto.ReplaceDuringCopy && entry.Category == models.CategoryVideo {
			songID, ok := replaceable[entry.ID]
			if !ok {
				// unresolved video, resurfaces next cycle
				continue
			}
			final = songID
		}
		if inDest[final] || seen[final] {
			continue
		}
		seen[final] = true
		toCopy = append(toCopy, final)
	}

	if len(toCopy) == 0 {
		return 0, nil
	}
	if err := svc.AddPlaylistItems(ctx, auto.CopyDestinationID, toCopy); err != nil {
		return 0, fmt.Errorf("failed to copy items: %w", err)
	}
	return len(toCopy), nil
}

// streamingFor returns the mutation-capable client for an automation's owner,
// sending a re-login prompt when the stored refresh token has expired.
func (e *Engine) streamingFor(ctx context.Context, owner string) (services.StreamingService, error) {
	if e.streams == nil {
		return e.streaming, nil
	}

	account, err := e.store.Account(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", owner, err)
	}

	svc, err := e.streams.ForAccount(ctx, account)
	if err != nil {
		if errors.Is(err, shared.ErrRefreshFailed) {
			e.sendReloginPrompt(ctx, account)
		}
		return nil, err
	}
	return svc, nil
}

func (e *Engine) sendReloginPrompt(ctx context.Context, account *models.Account) {
	if e.loginURL == "" || account.SlackUserID == "" {
		return
	}
	text := "Your streaming session expired, log in again to resume automations"
	if err := e.notifier.PostEphemeral(ctx, e.infoChannel, account.SlackUserID, text, reloginBlocks(e.loginURL)); err != nil {
		e.logger.Warn("failed to send re-login prompt", "account", account.ID, "error", err)
	}
}

func captureFromEntry(entry services.SourceEntry) *models.MediaItem {
	return &models.MediaItem{
		SourceID:     entry.ID,
		Title:        entry.Title,
		Artist:       entry.Artist,
		Category:     entry.Category,
		Album:        entry.Album,
		Duration:     entry.Duration,
		Views:        entry.Views,
		ThumbnailURL: services.BestThumbnail(entry.Thumbnails, placeholderThumbnailURL),
	}
}
