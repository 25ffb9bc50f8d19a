package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the runner's config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = defaultConfigPath
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [remote] and [service] (or set MEDIASYNC_* variables in .env)\n")
	r.writePlain("2. Run 'mediasync setup database'\n")
	r.writePlain("3. Run 'mediasync session watch'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.settings().Database.Path
	r.logger.Info("initializing database", "path", path)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", path)
	r.writePlain("✓ Database ready at %s (schema version %d)\n", path, version)
	return nil
}
