package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/playsync/internal/repositories"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var store services.ConfigStore
	switch config.Store.Backend {
	case "sqlite":
		if db, err := shared.NewDatabase(config.Database.Path); err == nil {
			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
			store = repositories.NewSQLiteStore(db)
		} else {
			logger.Warnf("failed to open database: %v", err)
		}
	default:
		if config.Store.URL != "" {
			if s, err := services.NewRESTStore(
				config.Store.URL,
				config.Store.AuthCollection,
				config.Store.AuthUser,
				config.Store.AuthPassword,
				nil,
			); err == nil {
				store = s
			} else {
				logger.Warnf("failed to connect to record store: %v", err)
			}
		}
	}

	var library services.LibraryService
	if config.Library.URL != "" && config.Library.APIKey != "" {
		if svc, err := services.NewJellyfinService(config.Library.URL, config.Library.APIKey, nil); err == nil {
			library = svc
		}
	}

	streaming := services.NewYouTubeMusicService(config.Provider.ProxyURL, nil)
	if config.Provider.HeadersPath != "" {
		if headers, err := shared.ParseCurlFile(config.Provider.HeadersPath); err == nil {
			streaming = streaming.WithBrowserHeaders(headers.ToHeadersRaw())
		} else {
			logger.Warnf("failed to parse browser headers: %v", err)
		}
	}

	var streams services.StreamingFactory
	if config.Provider.ClientID != "" && config.Provider.ClientSecret != "" && store != nil {
		if f, err := services.NewOAuthStreamingFactory(
			streaming,
			config.Provider.ClientID,
			config.Provider.ClientSecret,
			config.Provider.RedirectURI,
			store,
		); err == nil {
			streams = f
		}
	}

	var notifier services.Notifier
	if config.Slack.BotToken != "" {
		notifier = services.NewSlackService(config.Slack.BotToken, nil)
	}

	runner := NewRunner(RunnerOpts{
		Config:    config,
		Store:     store,
		Library:   library,
		Streaming: streaming,
		Streams:   streams,
		Notifier:  notifier,
		Logger:    logger,
	})

	app := &cli.Command{
		Name:     "playsync",
		Usage:    "Keep streaming playlists consistent with a local media library",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
