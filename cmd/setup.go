package main

import (
	"context"

	"github.com/desertthunder/ledgersync/internal/cache"
	"github.com/desertthunder/ledgersync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a starter config file and initializes the cache database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		r.logger.Warn("config file not written", "error", err)
	} else {
		r.writePlainln("Wrote %s", configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}
	r.config = config

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return err
	}
	if err := shared.RunMigrations(db); err != nil {
		return err
	}
	r.db = db
	r.cache = cache.NewSQLiteStore(db)

	return r.writePlainln("Cache database ready at %s", config.Database.Path)
}
