package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/listener"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
)

// searchResultLimit caps how many song candidates one prompt offers.
const searchResultLimit = 5

// Candidate is one proposed song with its enriched view display.
type Candidate struct {
	Item  models.MediaItem
	Views string // scaled live count alongside the search-result figure
}

// selection is the JSON payload carried by a substitution prompt option.
type selection struct {
	VideoID string `json:"vid"`
	SongID  string `json:"sid"`
}

// ResolveSubstitutions proposes song candidates for a bounded random sample
// of the given unresolved videos and prompts the recipient over Slack. The
// sample never exceeds min(configured size, total); when it is smaller than
// the total a load-more affordance follows. Returns how many prompts were
// sent.
func (e *Engine) ResolveSubstitutions(ctx context.Context, videoIDs []string, slackUserID string, progress chan<- ProgressUpdate) (int, error) {
	if len(videoIDs) == 0 || slackUserID == "" {
		return 0, nil
	}

	settings, err := e.store.Settings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load settings: %w", err)
	}

	var items []models.MediaItem
	for _, id := range videoIDs {
		item, err := e.store.Media(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				e.logger.Warn("unresolved video missing from cache", "source_id", id)
				continue
			}
			return 0, err
		}
		items = append(items, *item)
	}
	if len(items) == 0 {
		return 0, nil
	}

	total := len(items)
	sample := min(settings.Sample(), total)
	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	items = items[:sample]

	prompted := 0
	for i, video := range items {
		e.sendProgress(progress, substitutionUpdate(i+1, sample, video.Title))

		candidates, err := e.SearchCandidates(ctx, video)
		if err != nil {
			e.logger.Warn("candidate search failed", "video", video.Title, "error", err)
			continue
		}
		if len(candidates) == 0 {
			// stays unresolved, retried next invocation
			continue
		}

		text := fmt.Sprintf("Pick a song to replace the video %q", video.Title)
		blocks := substitutionPromptBlocks(video, candidates)
		if err := e.notifier.PostEphemeral(ctx, e.infoChannel, slackUserID, text, blocks); err != nil {
			e.logger.Warn("failed to send substitution prompt", "video", video.Title, "error", err)
			continue
		}
		prompted++
	}

	if sample < total {
		remaining := total - sample
		text := fmt.Sprintf("%d more unresolved videos remain", remaining)
		if err := e.notifier.PostEphemeral(ctx, e.infoChannel, slackUserID, text, loadMoreBlocks(remaining)); err != nil {
			e.logger.Warn("failed to send load-more prompt", "error", err)
		}
	}

	return prompted, nil
}

// SearchCandidates runs the song search for one video and enriches each
// result with a rate-limited live view-count lookup.
func (e *Engine) SearchCandidates(ctx context.Context, video models.MediaItem) ([]Candidate, error) {
	query := video.Title
	if video.Artist != "" {
		query += " " + video.Artist
	}

	results, err := e.streaming.SearchSongs(ctx, query, searchResultLimit)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(results))
	for _, result := range results {
		views := result.Views
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if live, err := e.streaming.SongViews(ctx, result.SourceID); err == nil {
			views = formatter.FormatScaledNumber(live) + " / " + result.Views
		} else {
			e.logger.Warn("view-count enrichment failed", "song", result.Title, "error", err)
		}
		candidates = append(candidates, Candidate{Item: result, Views: views})
	}
	return candidates, nil
}

// ConfirmSubstitution persists a confirmed video-to-song mapping, then
// deletes the prompt message and posts an audit note. The persisted mapping
// is the authoritative side effect; deletion and audit failures are logged
// and never roll it back.
func (e *Engine) ConfirmSubstitution(ctx context.Context, videoID, songID string, prompt services.MessageRef) error {
	item, err := e.mutateMedia(ctx, videoID, func(item *models.MediaItem) error {
		if item.Category != models.CategoryVideo {
			return fmt.Errorf("%w: %s is not a video", shared.ErrInvalidInput, videoID)
		}
		item.SubstitutionID = songID
		return nil
	})
	if err != nil {
		return err
	}

	if prompt.Timestamp != "" {
		if err := e.notifier.DeleteMessage(ctx, prompt); err != nil {
			e.logger.Warn("failed to delete prompt message", "error", err)
		}
	}

	text := fmt.Sprintf("Resolved %q (%s) to song %s", item.Title, videoID, songID)
	if _, err := e.notifier.PostMessage(ctx, e.auditChannel, text, nil); err != nil {
		e.logger.Warn("failed to post audit notification", "error", err)
	}

	return nil
}

// IgnoreMedia marks a cached video so it is never prompted for again and
// automations drop it silently.
func (e *Engine) IgnoreMedia(ctx context.Context, videoID string) error {
	_, err := e.mutateMedia(ctx, videoID, func(item *models.MediaItem) error {
		if item.Category != models.CategoryVideo {
			return fmt.Errorf("%w: %s is not a video", shared.ErrInvalidInput, videoID)
		}
		item.Ignore = true
		return nil
	})
	return err
}

// RegisterHandlers wires the engine's interactive vocabulary into a registry.
func (e *Engine) RegisterHandlers(reg *listener.Registry) {
	reg.AddAction("substitution_select", e.handleSubstitutionSelect)
	reg.AddAction("substitution_load_more", e.handleLoadMore)
	reg.AddAction("mismatch_confirm", e.handleMismatchConfirm)
	reg.AddAction("playlist_rescan", e.handleRescan)
	reg.AddShortcut("scan-automations", e.handleScanShortcut)
	reg.AddShortcut("resolve-videos", e.handleResolveShortcut)
}

func (e *Engine) handleSubstitutionSelect(ctx context.Context, payload *listener.ActionPayload, action listener.Action) error {
	var choice selection
	if err := json.Unmarshal([]byte(action.SelectedValue()), &choice); err != nil {
		return fmt.Errorf("malformed selection payload: %w", err)
	}
	prompt := services.MessageRef{Channel: payload.Channel.ID, Timestamp: payload.Container.MessageTS}
	return e.ConfirmSubstitution(ctx, choice.VideoID, choice.SongID, prompt)
}

// handleLoadMore resumes resolution against the full unresolved set. It is
// not an offset; repeats across rounds are harmless since confirmation is
// idempotent per id.
func (e *Engine) handleLoadMore(ctx context.Context, payload *listener.ActionPayload, _ listener.Action) error {
	return e.resolveAllFor(ctx, payload.User.ID)
}

func (e *Engine) handleResolveShortcut(ctx context.Context, payload *listener.ShortcutPayload) error {
	return e.resolveAllFor(ctx, payload.User.ID)
}

func (e *Engine) resolveAllFor(ctx context.Context, slackUserID string) error {
	unresolved, err := e.store.ListMedia(ctx, services.MediaFilter{Category: models.CategoryVideo, Unresolved: true})
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(unresolved))
	for _, item := range unresolved {
		ids = append(ids, item.SourceID)
	}
	_, err = e.ResolveSubstitutions(ctx, ids, slackUserID, nil)
	return err
}

// handleMismatchConfirm approves a reported recovery mismatch: the library
// item receives the entry's provider id unless it already carries a
// different one.
func (e *Engine) handleMismatchConfirm(ctx context.Context, payload *listener.ActionPayload, action listener.Action) error {
	var approval struct {
		EntryID   string `json:"vid"`
		LibraryID string `json:"lid"`
	}
	if err := json.Unmarshal([]byte(action.SelectedValue()), &approval); err != nil {
		return fmt.Errorf("malformed mismatch payload: %w", err)
	}

	settings, err := e.store.Settings(ctx)
	if err != nil {
		return err
	}
	user, err := e.library.UserByName(ctx, settings.LibraryUserName)
	if err != nil {
		return err
	}

	item, err := e.library.Item(ctx, approval.LibraryID, user.ID)
	if err != nil {
		return err
	}
	if existing := item.ProviderID(); existing != "" && existing != approval.EntryID {
		e.logger.Warn("refusing to overwrite provider id",
			"item", item.Name, "existing", existing, "proposed", approval.EntryID)
		return nil
	}

	return e.library.SetProviderID(ctx, approval.LibraryID, user.ID, services.ProviderIDKey, approval.EntryID)
}

func (e *Engine) handleRescan(ctx context.Context, payload *listener.ActionPayload, _ listener.Action) error {
	return e.rescan(ctx)
}

func (e *Engine) handleScanShortcut(ctx context.Context, _ *listener.ShortcutPayload) error {
	return e.rescan(ctx)
}

func (e *Engine) rescan(ctx context.Context) error {
	report, err := e.RunCycle(ctx, nil)
	if err != nil {
		text := fmt.Sprintf("On-demand rescan failed: %v", err)
		if _, postErr := e.notifier.PostMessage(ctx, e.infoChannel, text, nil); postErr != nil {
			e.logger.Error("failed to report rescan failure", "error", postErr)
		}
		return err
	}
	e.logger.Info("on-demand rescan finished",
		"playlists", len(report.Playlists), "automations", len(report.Automations))
	return nil
}
