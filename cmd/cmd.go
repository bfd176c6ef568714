// package main implements the playsync command line interface.
//
// Commands are constructed by per-concern builder functions and dispatch to
// Runner methods, which hold the shared service wiring.
package main

import (
	"github.com/urfave/cli/v3"
)

// setupCommand handles one-time setup: database migrations, store settings,
// and browser-header authentication.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a starter config.toml in the current directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the local sqlite store and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll the schema back instead of migrating",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "store",
				Usage: "Write a runtime setting into the store's settings bag",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.SetupStore,
			},
			{
				Name:    "browser",
				Aliases: []string{"headers"},
				Usage:   "Validate browser-header authentication from a saved cURL command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command (Copy as cURL)",
					},
				},
				Action: r.SetupBrowser,
			},
		},
	}
}

// authCommand handles streaming-account authentication.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage streaming account authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Link a streaming account via the OAuth browser flow",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "slack-user",
						Usage: "Slack member ID to route substitution prompts to",
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Check a linked account's token state",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "account"},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// daemonCommand runs the scheduler loop.
func daemonCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "daemon",
		Usage:  "Run reconciliation cycles on the configured interval",
		Action: r.Daemon,
	}
}

// syncCommand runs a single full cycle.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one reconciliation cycle and print the report",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the cycle report as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		},
		Action: r.Sync,
	}
}

// automationsCommand runs the policy pass alone.
func automationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "automations",
		Aliases: []string{"policies"},
		Usage:   "Apply substitution and copy automations without a full cycle",
		Action:  r.Automations,
	}
}

// resolveCommand prompts a user to resolve unconfirmed videos.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Send substitution prompts for unresolved videos to a Slack user",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "slack-user"},
		},
		Action: r.Resolve,
	}
}

// providerCommand exposes direct streaming-catalog reads for debugging.
func providerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "provider",
		Aliases: []string{"yt", "ytmusic"},
		Usage:   "Direct streaming catalog operations",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search the catalog for songs",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum results",
						Value: 10,
					},
				},
				Action: r.ProviderSearch,
			},
			{
				Name:  "playlist",
				Usage: "Fetch a cloud playlist and print its entries",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "flat",
						Usage: "Use the shallow fetch path",
					},
				},
				Action: r.ProviderPlaylist,
			},
		},
	}
}

// tuiCommand launches the interactive substitution review screen.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Review and resolve video substitutions interactively",
		Action:  r.TUI,
	}
}
