package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded starter config to disk.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("wrote starter config", "path", path)
	return r.writePlain("edit %s, then run `playsync setup database`\n", path)
}

// SetupDatabase opens the configured sqlite store and applies (or rolls back)
// the schema migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	if path := cmd.String("config"); path != "" {
		if loaded, err := shared.LoadConfig(path); err == nil {
			config = loaded
		}
	}

	if config.Database.Path == "" {
		return fmt.Errorf("%w: database.path", shared.ErrMissingConfig)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		r.logger.Info("rolled back schema", "path", config.Database.Path)
		return nil
	}

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	r.logger.Info("database ready", "path", config.Database.Path)
	return nil
}

// settingsWriter is the optional write surface of a settings-bearing store.
// The remote record store is edited through its own admin UI, so only the
// sqlite backend implements it.
type settingsWriter interface {
	SetSetting(ctx context.Context, key, value string) error
}

// SetupStore writes one key into the store's runtime settings bag.
func (r *Runner) SetupStore(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	value := cmd.StringArg("value")
	if key == "" {
		return fmt.Errorf("%w: key", shared.ErrMissingArgument)
	}

	if r.store == nil {
		return fmt.Errorf("%w: store", shared.ErrMissingConfig)
	}
	writer, ok := r.store.(settingsWriter)
	if !ok {
		return fmt.Errorf("%w: the %q store backend is edited externally", shared.ErrInvalidConfig, r.config.Store.Backend)
	}

	if err := writer.SetSetting(ctx, key, value); err != nil {
		return fmt.Errorf("failed to write setting: %w", err)
	}
	r.store.InvalidateSettings()
	return r.writePlain("%s = %s\n", key, value)
}

// SetupBrowser parses a saved cURL command and reports whether it carries the
// headers the streaming catalog needs for browser-authenticated reads.
func (r *Runner) SetupBrowser(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("curl-file")
	if path == "" {
		path = r.config.Provider.HeadersPath
	}
	if path == "" {
		return fmt.Errorf("%w: curl-file", shared.ErrMissingArgument)
	}

	headers, err := shared.ParseCurlFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse cURL file: %w", err)
	}

	r.writePlainHeader("Browser headers")
	r.writePlain("parsed %d headers from %s\n", len(headers.Headers), path)
	if headers.Cookie == "" {
		r.writePlain("warning: no cookie header found, authenticated reads will fail\n")
	} else {
		r.writePlain("cookie present\n")
	}
	if r.config.Provider.HeadersPath != path {
		r.writePlain("set provider.headers_path = %q in config.toml to use these headers\n", path)
	}
	return nil
}
