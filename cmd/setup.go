package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/multiverse/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	versions, err := shared.AppliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (%d migrations applied)\n", r.config.Database.Path, len(versions))
	return nil
}

// SetupConfig writes the embedded example config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	if _, err := shared.LoadConfig(path); err != nil {
		return fmt.Errorf("created config does not load: %w", err)
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	return nil
}

// SetupUser prints the user identity, creating and registering it on first use.
//
// With --set the given id is persisted instead.
func (r *Runner) SetupUser(ctx context.Context, cmd *cli.Command) error {
	if id := cmd.String("set"); id != "" {
		settings, err := r.settings(ctx)
		if err != nil {
			return err
		}
		if err := settings.SetUserID(ctx, id); err != nil {
			return err
		}
		r.logger.Info("user identity pinned", "user_id", id)
		return r.writePlain("%s\n", id)
	}

	id, err := r.userID(ctx, cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", id)
}
