package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/potenza-io/opsbot/pkg/service/email"
)

type Email struct {
	region string
	source string
}

func (x *Email) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "email-region",
			Usage:       "AWS region for SES",
			Category:    "Email",
			Value:       "us-east-1",
			Destination: &x.region,
			Sources:     cli.EnvVars("OPSBOT_EMAIL_REGION"),
		},
		&cli.StringFlag{
			Name:        "email-source",
			Usage:       "Verified sender address for verification codes",
			Category:    "Email",
			Destination: &x.source,
			Sources:     cli.EnvVars("OPSBOT_EMAIL_SOURCE"),
		},
	}
}

func (x Email) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("region", x.region),
		slog.String("source", x.source),
	)
}

// Configure builds the SES sender
func (x *Email) Configure(ctx context.Context) (email.Sender, error) {
	if x.source == "" {
		return nil, goerr.New("email-source is required")
	}
	return email.New(ctx, x.region, x.source)
}
