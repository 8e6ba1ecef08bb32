package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/potenza-io/opsbot/pkg/service/analytics"
)

type Analytics struct {
	endpoint   string
	loginURL   string
	credential string
}

func (x *Analytics) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "analytics-endpoint",
			Usage:       "SQL gateway query endpoint",
			Category:    "Analytics",
			Destination: &x.endpoint,
			Sources:     cli.EnvVars("OPSBOT_ANALYTICS_ENDPOINT"),
		},
		&cli.StringFlag{
			Name:        "analytics-login-url",
			Usage:       "SQL gateway login endpoint",
			Category:    "Analytics",
			Destination: &x.loginURL,
			Sources:     cli.EnvVars("OPSBOT_ANALYTICS_LOGIN_URL"),
		},
		&cli.StringFlag{
			Name:        "analytics-credential",
			Usage:       "SQL gateway access credential",
			Category:    "Analytics",
			Destination: &x.credential,
			Sources:     cli.EnvVars("OPSBOT_ANALYTICS_CREDENTIAL"),
		},
	}
}

func (x Analytics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", x.endpoint),
		slog.String("login-url", x.loginURL),
		slog.Int("credential.len", len(x.credential)),
	)
}

// Configure builds the analytics SQL gateway client
func (x *Analytics) Configure() (analytics.Gateway, error) {
	if x.endpoint == "" {
		return nil, goerr.New("analytics-endpoint is required")
	}
	if x.loginURL == "" {
		return nil, goerr.New("analytics-login-url is required")
	}
	return analytics.New(x.endpoint, x.loginURL, x.credential)
}
