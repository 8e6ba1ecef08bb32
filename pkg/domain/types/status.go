package types

// Status is the tagged result status returned by every tool function.
// The string values are part of the tool contract consumed by the LLM
// and must not be renamed.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"

	StatusInvalidInput  Status = "failure_invalid_input"
	StatusUserNotLinked Status = "failure_user_not_linked"
	StatusUserNotFound  Status = "failure_user_not_found"
	StatusNoDataFound   Status = "failure_no_data_found"
	StatusNotFound      Status = "failure_not_found"
	StatusAlreadyAdmin  Status = "failure_already_admin"
	StatusNotAdminUser  Status = "failure_not_admin_user"
	StatusNotAdmin      Status = "failure_not_admin"
	StatusToolError     Status = "failure_tool_error"
)

// EntryStatus is the per-entry outcome of bulk time operations
type EntryStatus string

const (
	EntryLogged         EntryStatus = "logged"
	EntrySkippedWeekend EntryStatus = "skipped_weekend"
	EntryFailed         EntryStatus = "failed"
	EntryDeleted        EntryStatus = "deleted"
	EntryUpdated        EntryStatus = "updated"
	EntryNotFound       EntryStatus = "not_found"
	EntryNoChangeNeeded EntryStatus = "no_change_needed"
)
