package model

import "time"

// Conversation records the opaque LLM continuation token for one Slack
// channel. Reads treat rows older than types.ConversationTTL as absent.
type Conversation struct {
	ChannelID          string
	PreviousResponseID string
	LastUpdated        time.Time
}

// ProcessedEvent marks a Slack event delivery as handled so redeliveries
// are acknowledged without side effects.
type ProcessedEvent struct {
	MessageTS   string
	ChannelID   string
	ProcessedAt time.Time
}

// ToolUsage is one append-only audit record per successful tool dispatch.
// When an act-as session is active, SlackID and UserEmail record the
// effective (impersonated) identity while ActorSlackID records the admin.
type ToolUsage struct {
	ID           int64
	FunctionName string
	UserEmail    string
	SlackID      SlackUserID
	ActorSlackID SlackUserID
	CalledAt     time.Time
}

// ActingAs is a time-limited impersonation session. At most one exists per
// admin; reads treat rows older than types.ActingAsTTL as absent.
type ActingAs struct {
	AdminSlackID SlackUserID
	UserSlackID  SlackUserID
	CreatedAt    time.Time
}
