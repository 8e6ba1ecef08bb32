package model

import "time"

// VerificationCode is a pending email verification. At most one exists per
// Slack user; a new request replaces any prior code.
type VerificationCode struct {
	SlackID   SlackUserID
	Email     string
	Code      string // six ASCII decimal digits
	CreatedAt time.Time
}

// VerifyOutcome is the result of an attempted code verification
type VerifyOutcome int

const (
	// VerifyNone means no code is stored for the user
	VerifyNone VerifyOutcome = iota
	// VerifyOK means the code matched within its TTL and was consumed
	VerifyOK
	// VerifyMismatch means the code did not match; the stored code survives
	VerifyMismatch
	// VerifyExpired means the stored code was past its TTL and has been deleted
	VerifyExpired
)
