package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
)

type Targetprocess struct {
	baseURL     string
	accessToken string
	restartURL  string
}

func (x *Targetprocess) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "targetprocess-url",
			Usage:       "Base URL of the Targetprocess instance",
			Category:    "Targetprocess",
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("OPSBOT_TARGETPROCESS_URL"),
		},
		&cli.StringFlag{
			Name:        "targetprocess-token",
			Usage:       "Targetprocess API access token",
			Category:    "Targetprocess",
			Destination: &x.accessToken,
			Sources:     cli.EnvVars("OPSBOT_TARGETPROCESS_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "targetprocess-restart-url",
			Usage:       "Endpoint that restarts the upstream data service (admin tool)",
			Category:    "Targetprocess",
			Destination: &x.restartURL,
			Sources:     cli.EnvVars("OPSBOT_TARGETPROCESS_RESTART_URL"),
		},
	}
}

func (x Targetprocess) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base-url", x.baseURL),
		slog.Int("access-token.len", len(x.accessToken)),
	)
}

// Configure builds the Targetprocess client
func (x *Targetprocess) Configure() (targetprocess.Client, error) {
	if x.baseURL == "" {
		return nil, goerr.New("targetprocess-url is required")
	}
	if x.accessToken == "" {
		return nil, goerr.New("targetprocess-token is required")
	}

	var opts []targetprocess.Option
	if x.restartURL != "" {
		opts = append(opts, targetprocess.WithRestartURL(x.restartURL))
	}
	return targetprocess.New(x.baseURL, x.accessToken, opts...)
}
