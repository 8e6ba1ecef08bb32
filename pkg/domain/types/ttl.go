package types

import "time"

// Retention windows for stored state. Reads treat rows older than these
// as absent; the maintenance job prunes them for real.
const (
	// VerificationCodeTTL is how long an emailed 6-digit code stays valid
	VerificationCodeTTL = 10 * time.Minute

	// ConversationTTL is the inactivity window after which a channel's
	// LLM continuation token is discarded
	ConversationTTL = 12 * time.Hour

	// ProcessedEventTTL is how long handled Slack event keys are kept
	// for duplicate-delivery suppression
	ProcessedEventTTL = 24 * time.Hour

	// ActingAsTTL bounds an admin impersonation session
	ActingAsTTL = 60 * time.Minute
)
