package interfaces

import (
	"context"
	"time"

	"github.com/potenza-io/opsbot/pkg/domain/model"
)

// Repository defines the interface for data persistence
type Repository interface {
	User() UserRepository
	Verification() VerificationRepository
	Conversation() ConversationRepository
	Event() EventRepository
	ActAs() ActAsRepository
	Audit() AuditRepository

	Close() error
}

// UserRepository persists authenticated users
type UserRepository interface {
	// Upsert creates or replaces the row keyed by SlackID. The IsAdmin
	// flag of an existing row is kept; only SetAdmin changes it. Returns
	// types.ErrDuplicateKey when the email is already bound to another user.
	Upsert(ctx context.Context, user *model.User) error

	// Get returns the user for a Slack ID, or nil when absent
	Get(ctx context.Context, slackID model.SlackUserID) (*model.User, error)

	// GetByEmail returns the user with the exact corporate email, or nil
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByEmailLike returns the first user whose email contains the given
	// substring (case-insensitive), or nil
	FindByEmailLike(ctx context.Context, substr string) (*model.User, error)

	// ListAdmins returns all users with the admin flag set
	ListAdmins(ctx context.Context) ([]*model.User, error)

	// SetAdmin flips the admin flag of the given user
	SetAdmin(ctx context.Context, slackID model.SlackUserID, isAdmin bool) error

	// EnsureBootstrapAdmin elevates the user with the given corporate ID when
	// no admin exists. Returns true if an elevation happened.
	EnsureBootstrapAdmin(ctx context.Context, corporateID int64) (bool, error)
}

// VerificationRepository persists pending email verification codes
type VerificationRepository interface {
	// Put stores a code, replacing any prior code for the same Slack user.
	// A zero CreatedAt defaults to the current time.
	Put(ctx context.Context, code *model.VerificationCode) error

	// Get returns the pending code for a Slack user, or nil
	Get(ctx context.Context, slackID model.SlackUserID) (*model.VerificationCode, error)

	// VerifyAndConsume atomically checks the supplied code against the stored
	// one. A match within the TTL deletes the row and returns VerifyOK. An
	// expired row is deleted and VerifyExpired is returned regardless of the
	// supplied digits. A mismatch leaves the row in place.
	VerifyAndConsume(ctx context.Context, slackID model.SlackUserID, code string) (*model.VerificationCode, model.VerifyOutcome, error)

	// Delete removes the pending code, if any
	Delete(ctx context.Context, slackID model.SlackUserID) error
}

// ConversationRepository persists per-channel LLM continuation tokens
type ConversationRepository interface {
	// Get returns the conversation for a channel, or nil when absent or when
	// the row is older than the conversation TTL
	Get(ctx context.Context, channelID string) (*model.Conversation, error)

	// Put stores the continuation token. A zero LastUpdated defaults to now.
	Put(ctx context.Context, conv *model.Conversation) error

	// ResetAll clears every stored continuation token
	ResetAll(ctx context.Context) error
}

// EventRepository records handled Slack event deliveries
type EventRepository interface {
	// MarkProcessed atomically records the (messageTS, channelID) pair.
	// Returns true when the pair was not seen before.
	MarkProcessed(ctx context.Context, messageTS, channelID string) (bool, error)

	// PruneBefore deletes records older than the given time and returns the
	// number of rows removed
	PruneBefore(ctx context.Context, before time.Time) (int, error)
}

// ActAsRepository persists admin impersonation sessions
type ActAsRepository interface {
	// Put stores a session, replacing any prior session for the same admin.
	// A zero CreatedAt defaults to now.
	Put(ctx context.Context, session *model.ActingAs) error

	// Get returns the active session for an admin, or nil when absent or
	// older than the acting-as TTL
	Get(ctx context.Context, adminID model.SlackUserID) (*model.ActingAs, error)

	// Delete removes the session, if any
	Delete(ctx context.Context, adminID model.SlackUserID) error
}

// AuditRepository stores the append-only tool usage log
type AuditRepository interface {
	Append(ctx context.Context, usage *model.ToolUsage) error

	// List returns the most recent entries, newest first
	List(ctx context.Context, limit int) ([]*model.ToolUsage, error)
}
