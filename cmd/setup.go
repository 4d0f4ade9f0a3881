package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/upcoming/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase applies pending migrations (or rolls back the latest one) and prints the migration table.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	if cmd.Bool("rollback") {
		r.logger.Warn("rolling back most recent migration")
		if err := shared.RollbackMigration(r.db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	} else {
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(r.db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	statuses, err := shared.Migrations(r.db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Migrations")
	for _, m := range statuses {
		mark := r.palette.Help("pending")
		if m.Applied {
			mark = r.palette.OK("applied")
		}
		r.writePlain("%04d  %-32s %s\n", m.Version, m.Name, mark)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// SetupConfig writes the built-in config template to --output.
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
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Configuration written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or UPCOMING_SPOTIFY_CLIENT_ID / UPCOMING_SPOTIFY_CLIENT_SECRET in .env)\n")
	r.writePlain("2. Run 'upcoming auth login' to authorize playlist access\n")
	r.writePlain("3. Run 'upcoming sync run' to build the venue playlists\n")
	return nil
}
