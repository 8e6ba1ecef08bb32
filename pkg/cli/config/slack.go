package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	slacksvc "github.com/potenza-io/opsbot/pkg/service/slack"
)

type Slack struct {
	botToken      string
	signingSecret string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("OPSBOT_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (for webhook verification)",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("OPSBOT_SLACK_SIGNING_SECRET"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.Int("signing-secret.len", len(x.signingSecret)),
	)
}

// SigningSecret returns the webhook signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}

// Configure builds the outbound Slack service
func (x *Slack) Configure() (slacksvc.Service, error) {
	if x.botToken == "" {
		return nil, goerr.New("slack-bot-token is required")
	}
	if x.signingSecret == "" {
		return nil, goerr.New("slack-signing-secret is required")
	}
	return slacksvc.New(x.botToken)
}
