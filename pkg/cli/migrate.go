package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/potenza-io/opsbot/pkg/cli/config"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create or update the SQLite schema",
		Flags:   repoCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()
			logger.Info("Migrating database", "path", repoCfg.DBPath())

			// opening the repository runs AutoMigrate
			repo, err := repoCfg.Configure()
			if err != nil {
				return err
			}
			if err := repo.Close(); err != nil {
				return err
			}

			logger.Info("Migration completed")
			return nil
		},
	}
}
