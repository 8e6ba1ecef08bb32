package model

import "time"

// SlackUserID represents a unique identifier for a Slack user
type SlackUserID string

// User is a Slack user bound to a corporate identity. A row exists if and
// only if the user may issue requests beyond the identity flow.
type User struct {
	SlackID         SlackUserID
	Email           string // corporate email, unique
	CorporateID     int64  // 0 only for legacy rows created before the binding migration
	IsAdmin         bool
	AuthenticatedAt time.Time
}

// Linked reports whether the user carries a corporate identity binding
func (u *User) Linked() bool {
	return u != nil && u.CorporateID > 0
}
