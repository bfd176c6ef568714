package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/desertthunder/playsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync runs one full reconciliation cycle and prints the report.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	report, err := r.engine.RunCycle(ctx, progress)
	close(progress)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	if useJSON {
		return r.writeJSON(report, pretty)
	}

	r.writePlainln("%s", formatter.RenderReport("Cycle report", reportLines(report)))
	for _, p := range report.Playlists {
		if p.Err != nil {
			r.writePlain("  playlist %s: %v\n", p.SourceName, p.Err)
		}
	}
	for _, err := range report.Errs {
		r.writePlain("  stage failure: %v\n", err)
	}
	return nil
}

func reportLines(report *tasks.CycleReport) []formatter.ReportLine {
	added, mismatches := 0, 0
	for _, p := range report.Playlists {
		added += p.Added
		mismatches += len(p.Mismatches)
	}
	lines := []formatter.ReportLine{
		{Label: "Playlists reconciled", Value: strconv.Itoa(len(report.Playlists))},
		{Label: "Items added", Value: strconv.Itoa(added)},
		{Label: "Mismatches flagged", Value: strconv.Itoa(mismatches)},
		{Label: "Automations applied", Value: strconv.Itoa(len(report.Automations))},
		{Label: "Items captured", Value: strconv.Itoa(report.Captured)},
		{Label: "Prompts sent", Value: strconv.Itoa(report.Prompted)},
		{Label: "Stage failures", Value: strconv.Itoa(len(report.Errs))},
	}
	if report.Refresh != nil {
		lines = append(lines, formatter.ReportLine{
			Label: "Configs refreshed",
			Value: fmt.Sprintf("%d checked, %d updated, %d created", report.Refresh.Checked, report.Refresh.Updated, report.Refresh.Created),
		})
	}
	if report.Backfill != nil {
		lines = append(lines, formatter.ReportLine{
			Label: "Provider ids",
			Value: fmt.Sprintf("%d processed, %d updated, %d failed", report.Backfill.Processed, report.Backfill.Updated, report.Backfill.Failed),
		})
	}
	return lines
}

// Automations applies the configured policies without running a full cycle.
func (r *Runner) Automations(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	results, unresolved, captured, err := r.engine.RunAutomations(ctx, nil)
	if err != nil {
		return fmt.Errorf("policy pass failed: %w", err)
	}

	r.writePlainHeader("Automation results")
	for _, res := range results {
		if res.Err != nil {
			r.writePlain("%s: %v\n", res.PlaylistID, res.Err)
			continue
		}
		r.writePlain("%s: +%d -%d in source, %d copied, %d unresolved\n",
			res.PlaylistID, res.SourceAdded, res.SourceRemoved, res.Copied, res.Unresolved)
	}
	r.writePlain("captured %d new items\n", captured)

	pending := 0
	for _, ids := range unresolved {
		pending += len(ids)
	}
	if pending > 0 {
		r.writePlain("%d videos need substitution, run `playsync resolve` or wait for the daemon\n", pending)
	}
	return nil
}

// Resolve sends substitution prompts for every unresolved cached video to the
// given Slack user.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	slackUser := cmd.StringArg("slack-user")
	if slackUser == "" {
		return fmt.Errorf("%w: slack-user", shared.ErrMissingArgument)
	}

	videos, err := r.store.ListMedia(ctx, services.MediaFilter{
		Category:   models.CategoryVideo,
		Unresolved: true,
	})
	if err != nil {
		return fmt.Errorf("failed to list unresolved videos: %w", err)
	}
	if len(videos) == 0 {
		return r.writePlain("no unresolved videos\n")
	}

	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.SourceID
	}

	prompted, err := r.engine.ResolveSubstitutions(ctx, ids, slackUser, nil)
	if err != nil {
		return fmt.Errorf("failed to send prompts: %w", err)
	}

	return r.writePlain("sent %d substitution prompts (%d videos pending)\n", prompted, len(videos))
}
