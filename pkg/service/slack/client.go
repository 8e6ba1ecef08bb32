package slack

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// client implements Service interface
type client struct {
	api *slack.Client
}

// New creates a new Slack service with the provided bot token
func New(token string) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	return &client{api: slack.New(token)}, nil
}

// PostMessage posts a plain text message to the channel
func (c *client) PostMessage(ctx context.Context, channelID, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to post Slack message", goerr.V("channel_id", channelID))
	}
	return ts, nil
}

// UpdateMessage replaces the text of an existing message
func (c *client) UpdateMessage(ctx context.Context, channelID, messageTS, text string) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, messageTS,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to update Slack message",
			goerr.V("channel_id", channelID),
			goerr.V("message_ts", messageTS),
		)
	}
	return nil
}
