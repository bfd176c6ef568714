// Block Kit builders for the engine's outbound Slack messages.
package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
)

// substitutionPromptBlocks renders one video's candidate list with an
// overflow menu carrying (video id, song id) pairs.
func substitutionPromptBlocks(video models.MediaItem, candidates []Candidate) []services.Block {
	blocks := []services.Block{
		{
			Type: "section",
			Text: services.Markdown(fmt.Sprintf("*Replace video:* %s - %s [%s]",
				video.Title, video.Artist, formatter.FormatDuration(video.Duration))),
			Accessory: &services.BlockElement{
				Type:     "image",
				ImageURL: video.ThumbnailURL,
				AltText:  video.Title,
			},
		},
		services.Divider(),
	}

	options := make([]services.BlockOption, 0, len(candidates))
	for i, c := range candidates {
		line := fmt.Sprintf("*%d. %s* - %s\n%s · %s · %s views",
			i+1, c.Item.Title, c.Item.Artist,
			c.Item.Album, formatter.FormatDuration(c.Item.Duration), c.Views)
		blocks = append(blocks, services.Block{
			Type: "section",
			Text: services.Markdown(line),
			Accessory: &services.BlockElement{
				Type:     "image",
				ImageURL: c.Item.ThumbnailURL,
				AltText:  c.Item.Title,
			},
		})

		value, _ := json.Marshal(selection{VideoID: video.SourceID, SongID: c.Item.SourceID})
		options = append(options, services.BlockOption{
			Text:  services.PlainText(fmt.Sprintf("%d. %s", i+1, c.Item.Title)),
			Value: string(value),
		})
	}

	blocks = append(blocks, services.Block{
		Type: "actions",
		Elements: []services.BlockElement{{
			Type:     "overflow",
			ActionID: "substitution_select",
			Options:  options,
		}},
	})
	return blocks
}

func loadMoreBlocks(remaining int) []services.Block {
	return []services.Block{{
		Type: "section",
		Text: services.Markdown(fmt.Sprintf("*%d* unresolved videos remain.", remaining)),
		Accessory: &services.BlockElement{
			Type:     "button",
			Text:     services.PlainText("Resolve more"),
			Style:    "primary",
			ActionID: "substitution_load_more",
			Value:    "resume",
		},
	}}
}

// mismatchBlocks renders one batch of recovery mismatches, each with an
// approval button.
func mismatchBlocks(batch []Mismatch) []services.Block {
	blocks := []services.Block{{
		Type: "section",
		Text: services.Markdown("*Recovery mismatches* - path id matched but metadata disagreed:"),
	}}

	for _, m := range batch {
		value, _ := json.Marshal(struct {
			EntryID   string `json:"vid"`
			LibraryID string `json:"lid"`
		}{m.EntryID, m.LibraryID})

		line := fmt.Sprintf("`%s`\nentry: %s - %s\nlibrary: %s - %s",
			m.EntryID, m.EntryTitle, m.Channel, m.ItemName, strings.Join(m.Artists, ", "))
		blocks = append(blocks, services.Block{
			Type: "section",
			Text: services.Markdown(line),
			Accessory: &services.BlockElement{
				Type:     "button",
				Text:     services.PlainText("Approve"),
				ActionID: "mismatch_confirm",
				Value:    string(value),
			},
		})
	}
	return blocks
}

func reloginBlocks(loginURL string) []services.Block {
	return []services.Block{{
		Type: "section",
		Text: services.Markdown(fmt.Sprintf("Your streaming session expired. <%s|Log in again> to resume automations.", loginURL)),
	}}
}

func cycleSummaryText(report *CycleReport) string {
	added := 0
	for _, p := range report.Playlists {
		added += p.Added
	}
	return fmt.Sprintf("Cycle finished: %d playlists reconciled, %d items added, %d automations, %d prompts",
		len(report.Playlists), added, len(report.Automations), report.Prompted)
}

// cycleSummaryBlocks renders the end-of-run report: per-playlist additions,
// automation mutations, and any stage failures.
func cycleSummaryBlocks(report *CycleReport) []services.Block {
	blocks := []services.Block{{
		Type: "section",
		Text: services.Markdown("*Sync cycle summary*"),
	}}

	var lines []string
	for _, p := range report.Playlists {
		state := fmt.Sprintf("added %d/%d", p.Added, p.Attempted)
		if p.Err != nil {
			state = fmt.Sprintf("%s (%s: %v)", state, p.Kind, p.Err)
		}
		lines = append(lines, fmt.Sprintf("• *%s*: %s, %d recovered, %d mismatches, %d unmatched",
			p.SourceName, state, p.Recovered, len(p.Mismatches), p.Unmatched))
	}
	for _, a := range report.Automations {
		state := fmt.Sprintf("+%d/−%d in source, %d copied, %d unresolved",
			a.SourceAdded, a.SourceRemoved, a.Copied, a.Unresolved)
		if a.Err != nil {
			state = fmt.Sprintf("%s (%s: %v)", state, a.Kind, a.Err)
		}
		lines = append(lines, fmt.Sprintf("• automation *%s*: %s", a.PlaylistID, state))
	}
	if report.Backfill != nil {
		lines = append(lines, fmt.Sprintf("• backfill: %d processed, %d updated, %d current, %d failed",
			report.Backfill.Processed, report.Backfill.Updated, report.Backfill.Current, report.Backfill.Failed))
	}
	if report.Captured > 0 {
		lines = append(lines, fmt.Sprintf("• %d new media items captured", report.Captured))
	}
	for _, err := range report.Errs {
		lines = append(lines, fmt.Sprintf("• :warning: %v", err))
	}
	if len(lines) == 0 {
		lines = []string{"Nothing to do."}
	}

	blocks = append(blocks, services.Block{
		Type: "section",
		Text: services.Markdown(strings.Join(lines, "\n")),
	})
	return blocks
}
