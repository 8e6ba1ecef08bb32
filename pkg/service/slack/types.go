package slack

import "context"

// Service provides the outbound Slack operations the assistant needs
type Service interface {
	// PostMessage posts a plain message to a channel and returns its timestamp
	PostMessage(ctx context.Context, channelID, text string) (string, error)

	// UpdateMessage replaces the text of a previously posted message.
	// The orchestrator uses it to swap the consulting notice for the
	// final reply.
	UpdateMessage(ctx context.Context, channelID, messageTS, text string) error
}
