package tool

import (
	"context"
	"fmt"

	"github.com/potenza-io/opsbot/pkg/domain/interfaces"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/service/analytics"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
)

// Handler is the uniform tool function signature: JSON-decoded arguments
// from the model plus the per-turn session context.
type Handler func(ctx context.Context, args map[string]any, sc *SessionContext) *Result

// SessionContext carries the effective identity of the caller and the
// service handles tools may use. When an act-as session is active the
// identity fields describe the impersonated user while the Actor fields
// keep the admin for audit purposes.
type SessionContext struct {
	UserEmail   string
	SlackID     model.SlackUserID
	CorporateID int64
	IsAdmin     bool

	ActorSlackID model.SlackUserID
	ActorEmail   string

	Repo          interfaces.Repository
	Analytics     analytics.Gateway
	Targetprocess targetprocess.Client

	// Entities returns a snapshot of the special-entity cache
	// (nickname such as "PTO_STORY" to upstream entity id)
	Entities func() map[string]int64
}

// Entity resolves a special-entity nickname from the cache snapshot
func (sc *SessionContext) Entity(nickname string) (int64, bool) {
	if sc.Entities == nil {
		return 0, false
	}
	id, ok := sc.Entities()[nickname]
	return id, ok
}

// StringArg extracts a string argument; empty string when absent
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// Int64Arg extracts an integer argument, accepting int, int64, or float64
func Int64Arg(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

// ListArg extracts a list argument as a slice of maps
func ListArg(args map[string]any, key string) []map[string]any {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

// StringListArg extracts a list argument as a slice of strings
func StringListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	items := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			items = append(items, s)
		}
	}
	return items
}
