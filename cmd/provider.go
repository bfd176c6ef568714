package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// ProviderSearch searches the streaming catalog for songs.
func (r *Runner) ProviderSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	limit := int(cmd.Int("limit"))

	r.logger.Info("searching catalog", "query", query, "limit", limit)

	results, err := r.streaming.SearchSongs(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if useJSON {
		return r.writeJSON(results, pretty)
	}

	if len(results) == 0 {
		return r.writePlain("no results for %q\n", query)
	}
	r.writePlain("Found %d songs:\n\n", len(results))
	for _, item := range results {
		r.writePlain("%s - %s", item.Artist, item.Title)
		if item.Album != "" {
			r.writePlain(" (%s)", item.Album)
		}
		if item.Duration > 0 {
			r.writePlain(" [%s]", formatter.FormatDuration(item.Duration))
		}
		r.writePlain("\n  id: %s\n", item.SourceID)
	}
	return nil
}

// ProviderPlaylist fetches one cloud playlist and prints its entries.
func (r *Runner) ProviderPlaylist(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	useJSON := cmd.Bool("json")

	if cmd.Bool("flat") {
		playlist, err := r.streaming.FlatPlaylist(ctx, id, true)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
		}
		if useJSON {
			return r.writeJSON(playlist, true)
		}
		r.writePlainHeader(fmt.Sprintf("%s (%d entries)", playlist.Title, len(playlist.Entries)))
		for _, e := range playlist.Entries {
			r.writePlain("%s  %s - %s\n", e.ID, e.Channel, e.Title)
		}
		return nil
	}

	playlist, err := r.streaming.Playlist(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
	}
	if useJSON {
		return r.writeJSON(playlist, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d entries)", playlist.Title, len(playlist.Entries)))
	for _, e := range playlist.Entries {
		r.writePlain("%s  [%s] %s - %s", e.ID, e.Category, e.Artist, e.Title)
		if e.Duration > 0 {
			r.writePlain(" [%s]", formatter.FormatDuration(e.Duration))
		}
		r.writePlain("\n")
	}
	return nil
}
