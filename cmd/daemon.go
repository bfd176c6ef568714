package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/playsync/internal/listener"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/urfave/cli/v3"
)

// Daemon runs reconciliation cycles forever, waiting the store-configured
// interval between runs. When a Slack app token is configured it also holds a
// Socket Mode connection so substitution prompts resolve interactively
// between cycles.
func (r *Runner) Daemon(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.config.Slack.AppToken != "" {
		opener, ok := r.notifier.(listener.SocketOpener)
		if !ok {
			r.logger.Warn("notifier does not support socket mode, interactive handlers disabled")
		} else {
			registry := listener.NewRegistry()
			r.engine.RegisterHandlers(registry)
			l, err := listener.New(opener, r.config.Slack.AppToken, registry, r.logger)
			if err != nil {
				return fmt.Errorf("failed to start event listener: %w", err)
			}
			go func() {
				if err := l.Run(ctx); err != nil && ctx.Err() == nil {
					r.logger.Error("event listener stopped", "error", err)
				}
			}()
		}
	}

	r.logger.Info("daemon started")
	for {
		report, err := r.engine.RunCycle(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("daemon stopping")
				return nil
			}
			r.logger.Error("cycle aborted", "error", err)
			r.reportCycleFailure(ctx, err)
		} else {
			r.logger.Info("cycle finished",
				"playlists", len(report.Playlists),
				"automations", len(report.Automations),
				"captured", report.Captured,
				"prompted", report.Prompted,
				"failures", len(report.Errs),
				"took", report.Finished.Sub(report.Started).Round(time.Second))
		}

		wait := r.cycleWait(ctx)
		r.logger.Info("waiting for next cycle", "interval", wait)

		select {
		case <-ctx.Done():
			r.logger.Info("daemon stopping")
			return nil
		case <-time.After(wait):
		}

		// Drop the cached settings bag so the next cycle observes edits made
		// through the store while we slept.
		r.store.InvalidateSettings()
	}
}

// reportCycleFailure posts an aborted cycle's error detail to the info
// channel so an unattended daemon does not fail silently.
func (r *Runner) reportCycleFailure(ctx context.Context, err error) {
	text := fmt.Sprintf("Sync cycle failed: %v", err)
	if _, postErr := r.notifier.PostMessage(ctx, r.config.Slack.Channel(), text, nil); postErr != nil {
		r.logger.Error("failed to report cycle failure", "error", postErr)
	}
}

// cycleWait reads the configured wait interval, falling back to the settings
// default when the store is unreachable.
func (r *Runner) cycleWait(ctx context.Context) time.Duration {
	settings, err := r.store.Settings(ctx)
	if err != nil {
		r.logger.Warn("failed to load settings for wait interval", "error", err)
		settings = &models.Settings{}
	}
	return settings.Wait()
}
