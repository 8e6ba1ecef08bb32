package tool

import (
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

// Result is the tagged outcome every tool function returns. Tools never
// propagate errors to the orchestrator; failures are encoded here and the
// LLM composes the user-facing sentence.
type Result struct {
	Status       types.Status   `json:"status"`
	Message      string         `json:"message,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	ErrorDetails string         `json:"error_details,omitempty"`
}

// Success builds a success result carrying data
func Success(data map[string]any) *Result {
	return &Result{Status: types.StatusSuccess, Data: data}
}

// Partial builds a partial-success result carrying data
func Partial(data map[string]any) *Result {
	return &Result{Status: types.StatusPartialSuccess, Data: data}
}

// Fail builds a failure result with the given status and reason
func Fail(status types.Status, reason string) *Result {
	return &Result{Status: status, Reason: reason}
}

// Invalid builds a failure_invalid_input result
func Invalid(reason string) *Result {
	return &Result{Status: types.StatusInvalidInput, Reason: reason}
}

// Error builds a failure_tool_error result with free-text details
func Error(details string) *Result {
	return &Result{Status: types.StatusToolError, ErrorDetails: details}
}
