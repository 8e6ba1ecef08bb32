package targetprocess

import "context"

// Client wraps the Targetprocess REST API surface the assistant uses:
// time entries, the user directory, and the out-of-band service restart.
type Client interface {
	// PostTime creates one time entry
	PostTime(ctx context.Context, req *PostTimeRequest) error

	// ListTimes returns the existing time entries of a user on a story
	ListTimes(ctx context.Context, userID, storyID int64) ([]TimeEntry, error)

	// DeleteTime removes one time entry by id
	DeleteTime(ctx context.Context, id int64) error

	// UpdateTime changes the date and/or spent hours of an entry. Nil fields
	// are left untouched upstream.
	UpdateTime(ctx context.Context, id int64, date *string, spent *float64) error

	// FindUsersByEmailLocalPart searches the directory with a "contains"
	// predicate on the email local-part
	FindUsersByEmailLocalPart(ctx context.Context, localPart string) ([]User, error)

	// FindUsersByName searches the directory matching first and last name
	// substrings with an "and" predicate; empty parts are skipped
	FindUsersByName(ctx context.Context, firstName, lastName string) ([]User, error)

	// RestartService issues the out-of-band restart request for the upstream
	// data service
	RestartService(ctx context.Context) error
}

// PostTimeRequest is the payload for a new time entry
type PostTimeRequest struct {
	Description  string
	Spent        float64
	Remain       float64
	Date         string // YYYY-MM-DD
	AssignableID int64  // story the hours are posted against
	UserID       int64
}

// TimeEntry is an existing time record on a story
type TimeEntry struct {
	ID    int64
	Date  string // YYYY-MM-DD, normalized from the upstream /Date(ms)/ form
	Spent float64
}

// User is a directory record
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
}
