package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/potenza-io/opsbot/pkg/cli/config"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger
	var closer func()

	// flags may come from a local .env; missing file is not an error
	_ = godotenv.Load()

	app := &cli.Command{
		Name:    "opsbot",
		Usage:   "Slack assistant for internal operations",
		Version: version,
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			logging.Default().Info("Starting opsbot", "logger", loggerCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdMigrate(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}
