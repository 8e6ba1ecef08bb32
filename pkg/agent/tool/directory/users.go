// Package directory implements user lookup and delivery-cycle query tools.
package directory

import (
	"context"
	"strings"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
)

// Handlers returns the handler table for the directory delegate
func Handlers() map[string]tool.Handler {
	return map[string]tool.Handler{
		"directory.lookup_user_by_email":        lookupUserByEmail,
		"directory.lookup_user_by_name":         lookupUserByName,
		"directory.get_current_cycles":          getCurrentCycles,
		"directory.get_cycle_for_date":          getCycleForDate,
		"directory.get_cycle_details":           getCycleDetails,
		"directory.get_latest_cycle_completion": getLatestCycleCompletion,
	}
}

func userToMap(u targetprocess.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"email":      u.Email,
	}
}

// lookupUserByEmail searches the directory using the email local-part as a
// "contains" predicate and returns the first match
func lookupUserByEmail(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	email := strings.TrimSpace(tool.StringArg(args, "email"))
	if email == "" {
		return tool.Invalid("email is required")
	}

	localPart := email
	if at := strings.Index(email, "@"); at > 0 {
		localPart = email[:at]
	}

	users, err := sc.Targetprocess.FindUsersByEmailLocalPart(ctx, localPart)
	if err != nil {
		return tool.Error(err.Error())
	}
	if len(users) == 0 {
		return tool.Fail(types.StatusUserNotFound, "no user found for "+email)
	}

	return tool.Success(map[string]any{"user": userToMap(users[0])})
}

// lookupUserByName searches the directory matching first and last name
// substrings; multiple matches are returned as-is
func lookupUserByName(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	firstName := strings.TrimSpace(tool.StringArg(args, "first_name"))
	lastName := strings.TrimSpace(tool.StringArg(args, "last_name"))
	if firstName == "" && lastName == "" {
		return tool.Invalid("first_name or last_name is required")
	}

	users, err := sc.Targetprocess.FindUsersByName(ctx, firstName, lastName)
	if err != nil {
		return tool.Error(err.Error())
	}
	if len(users) == 0 {
		return tool.Fail(types.StatusUserNotFound, "no user matched the given name")
	}

	items := make([]map[string]any, len(users))
	for i, u := range users {
		items[i] = userToMap(u)
	}
	return tool.Success(map[string]any{"users": items})
}
