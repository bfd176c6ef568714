package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"golang.org/x/time/rate"
)

// updateAttempts bounds the re-read-and-retry loop for cache writes.
const updateAttempts = 3

// EngineConfig carries the collaborator clients and channel routing an
// [Engine] needs.
type EngineConfig struct {
	Store     services.ConfigStore
	Library   services.LibraryService
	Streaming services.StreamingService // unauthenticated reads and search
	Streams   services.StreamingFactory // per-account mutation clients
	Notifier  services.Notifier

	InfoChannel     string
	MismatchChannel string
	AuditChannel    string
	LoginURL        string // re-login link sent when a refresh token has expired

	Logger *log.Logger
}

// Engine orchestrates the reconciliation cycle and the substitution workflow.
//
// The batch cycle is synchronous; interactive handlers share the engine and
// serialize metadata cache writes through mediaMu.
type Engine struct {
	store     services.ConfigStore
	library   services.LibraryService
	streaming services.StreamingService
	streams   services.StreamingFactory
	notifier  services.Notifier

	infoChannel     string
	mismatchChannel string
	auditChannel    string
	loginURL        string

	limiter *rate.Limiter
	logger  *log.Logger

	mediaMu sync.Mutex
}

// NewEngine validates the wiring and builds an engine. The view-count
// enrichment limiter is fixed at two calls per second.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil || cfg.Library == nil || cfg.Streaming == nil || cfg.Notifier == nil {
		return nil, fmt.Errorf("%w: engine requires store, library, streaming, and notifier", shared.ErrMissingConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:           cfg.Store,
		library:         cfg.Library,
		streaming:       cfg.Streaming,
		streams:         cfg.Streams,
		notifier:        cfg.Notifier,
		infoChannel:     cfg.InfoChannel,
		mismatchChannel: cfg.MismatchChannel,
		auditChannel:    cfg.AuditChannel,
		loginURL:        cfg.LoginURL,
		limiter:         rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		logger:          logger,
	}, nil
}

// Mismatch is a recovery candidate whose path-derived id matched a playlist
// entry but whose metadata disagreed. Surfaced for human review, never
// auto-applied.
type Mismatch struct {
	EntryID    string
	EntryTitle string
	Channel    string
	LibraryID  string
	ItemName   string
	Artists    []string
}

// PlaylistResult is the per-playlist outcome of one reconciliation pass.
type PlaylistResult struct {
	SourceID   string
	SourceName string
	Kind       shared.Kind
	Err        error

	Matched    int
	Recovered  int
	Unmatched  int
	Attempted  int
	Added      int
	Mismatches []Mismatch
}

// AutomationResult is the per-automation outcome of one policy pass.
type AutomationResult struct {
	PlaylistID string
	Kind       shared.Kind
	Err        error

	SourceAdded   int
	SourceRemoved int
	Copied        int
	Unresolved    int
}

// BackfillResult summarizes one provider-id backfill pass.
type BackfillResult struct {
	Processed int
	Updated   int
	Current   int
	Failed    int
}

// RefreshResult summarizes one playlist-config refresh pass.
type RefreshResult struct {
	Checked int
	Updated int
	Created int
	Failed  int
}

// CycleReport aggregates everything one scheduled cycle did.
type CycleReport struct {
	Started  time.Time
	Finished time.Time

	Refresh     *RefreshResult
	Backfill    *BackfillResult
	Playlists   []PlaylistResult
	Automations []AutomationResult
	Captured    int
	Prompted    int

	// Errs collects stage-level failures that did not stop the cycle.
	Errs []error
}

// Failed reports whether any stage of the cycle errored.
func (r *CycleReport) Failed() bool {
	return len(r.Errs) > 0
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// RunCycle executes one full scheduled cycle: config refresh, provider-id
// backfill, reconciliation, policy application, and substitution prompting.
// Stage failures are collected on the report; only an unusable settings bag
// or context cancellation aborts the cycle.
func (e *Engine) RunCycle(ctx context.Context, progress chan<- ProgressUpdate) (*CycleReport, error) {
	report := &CycleReport{Started: time.Now()}

	e.sendProgress(progress, phaseUpdate(LoadSettings, 1, 1, "Loading settings..."))
	settings, err := e.store.Settings(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load settings: %w", err)
	}

	user, err := e.library.UserByName(ctx, settings.LibraryUserName)
	if err != nil {
		return report, fmt.Errorf("failed to resolve library user: %w", err)
	}

	e.sendProgress(progress, phaseUpdate(RefreshConfigs, 1, 1, "Refreshing playlist configs..."))
	if refresh, err := e.RefreshPlaylistConfigs(ctx, user.ID); err != nil {
		report.Errs = append(report.Errs, fmt.Errorf("config refresh: %w", err))
	} else {
		report.Refresh = refresh
	}

	e.sendProgress(progress, phaseUpdate(Backfill, 1, 1, "Backfilling provider ids..."))
	if backfill, err := e.BackfillProviderIDs(ctx, user.ID); err != nil {
		report.Errs = append(report.Errs, fmt.Errorf("provider-id backfill: %w", err))
	} else {
		report.Backfill = backfill
	}

	if results, err := e.ReconcileAll(ctx, user.ID, progress); err != nil {
		report.Errs = append(report.Errs, fmt.Errorf("reconciliation: %w", err))
	} else {
		report.Playlists = results
	}

	results, unresolved, captured, err := e.RunAutomations(ctx, progress)
	if err != nil {
		report.Errs = append(report.Errs, fmt.Errorf("policy engine: %w", err))
	}
	report.Automations = results
	report.Captured = captured

	for owner, videoIDs := range unresolved {
		account, err := e.store.Account(ctx, owner)
		if err != nil {
			e.logger.Warn("cannot prompt owner, account lookup failed", "owner", owner, "error", err)
			continue
		}
		prompted, err := e.ResolveSubstitutions(ctx, videoIDs, account.SlackUserID, progress)
		if err != nil {
			report.Errs = append(report.Errs, fmt.Errorf("substitution for %s: %w", owner, err))
			continue
		}
		report.Prompted += prompted
	}

	e.sendProgress(progress, phaseUpdate(Notify, 1, 1, "Posting cycle summary..."))
	if _, err := e.notifier.PostMessage(ctx, e.infoChannel, cycleSummaryText(report), cycleSummaryBlocks(report)); err != nil {
		e.logger.Warn("failed to post cycle summary", "error", err)
	}

	report.Finished = time.Now()
	return report, nil
}

// captureMedia inserts a freshly observed item into the metadata cache,
// skipping quietly when a concurrent writer beat it to the key.
func (e *Engine) captureMedia(ctx context.Context, item *models.MediaItem) error {
	e.mediaMu.Lock()
	defer e.mediaMu.Unlock()

	if _, err := e.store.Media(ctx, item.SourceID); err == nil {
		return nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	if err := e.store.CreateMedia(ctx, item); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return nil
		}
		return err
	}
	return nil
}

// mutateMedia applies fn to the current cached state of a media item and
// persists it, re-reading and retrying on write failure so a stale copy never
// clobbers a concurrent confirmation.
func (e *Engine) mutateMedia(ctx context.Context, sourceID string, fn func(*models.MediaItem) error) (*models.MediaItem, error) {
	e.mediaMu.Lock()
	defer e.mediaMu.Unlock()

	var lastErr error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		item, err := e.store.Media(ctx, sourceID)
		if err != nil {
			return nil, err
		}
		if err := fn(item); err != nil {
			return nil, err
		}
		if err := e.store.UpdateMedia(ctx, item); err != nil {
			lastErr = err
			continue
		}
		return item, nil
	}
	return nil, fmt.Errorf("media update did not converge after %d attempts: %w", updateAttempts, lastErr)
}

// classifyErr maps a stage error onto the taxonomy for per-entity results.
func classifyErr(err error) shared.Kind {
	switch {
	case err == nil:
		return shared.KindNone
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrUserNotFound), errors.Is(err, shared.ErrPlaylistNotFound):
		return shared.KindNotFound
	case errors.Is(err, shared.ErrAPIRequest), errors.Is(err, shared.ErrAuthFailed), errors.Is(err, shared.ErrRefreshFailed), errors.Is(err, shared.ErrTokenExpired):
		return shared.KindTransient
	default:
		return shared.KindFatal
	}
}
