// Package admin implements privileged tool functions: admin grants, the
// upstream data-service restart, and act-as impersonation sessions.
package admin

import (
	"context"
	"strings"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

// Handlers returns the handler table for the admin delegate
func Handlers() map[string]tool.Handler {
	return map[string]tool.Handler{
		"admin.grant_admin":          grantAdmin,
		"admin.revoke_admin":         revokeAdmin,
		"admin.list_admins":          listAdmins,
		"admin.check_admin":          checkAdmin,
		"admin.restart_data_service": restartDataService,
		"admin.start_acting_as":      startActingAs,
		"admin.stop_acting_as":       stopActingAs,
		"admin.current_acting_as":    currentActingAs,
	}
}

// requireAdmin gates every handler in this package on the caller's own
// admin flag (the actor's, not the impersonated identity's)
func requireAdmin(sc *tool.SessionContext) *tool.Result {
	if !sc.IsAdmin {
		return tool.Fail(types.StatusNotAdmin, "this action requires admin privileges")
	}
	return nil
}

func grantAdmin(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	if r := requireAdmin(sc); r != nil {
		return r
	}

	email := strings.TrimSpace(tool.StringArg(args, "email"))
	if email == "" {
		return tool.Invalid("email is required")
	}

	user, err := sc.Repo.User().FindByEmailLike(ctx, email)
	if err != nil {
		return tool.Error(err.Error())
	}
	if user == nil {
		return tool.Fail(types.StatusUserNotFound, "no authenticated user matches "+email)
	}
	if user.IsAdmin {
		return tool.Fail(types.StatusAlreadyAdmin, user.Email+" is already an admin")
	}

	if err := sc.Repo.User().SetAdmin(ctx, user.SlackID, true); err != nil {
		return tool.Error(err.Error())
	}
	return tool.Success(map[string]any{"email": user.Email, "is_admin": true})
}

func revokeAdmin(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	if r := requireAdmin(sc); r != nil {
		return r
	}

	email := strings.TrimSpace(tool.StringArg(args, "email"))
	if email == "" {
		return tool.Invalid("email is required")
	}

	user, err := sc.Repo.User().FindByEmailLike(ctx, email)
	if err != nil {
		return tool.Error(err.Error())
	}
	if user == nil {
		return tool.Fail(types.StatusUserNotFound, "no authenticated user matches "+email)
	}
	if !user.IsAdmin {
		return tool.Fail(types.StatusNotAdminUser, user.Email+" is not an admin")
	}

	if err := sc.Repo.User().SetAdmin(ctx, user.SlackID, false); err != nil {
		return tool.Error(err.Error())
	}
	return tool.Success(map[string]any{"email": user.Email, "is_admin": false})
}

func listAdmins(ctx context.Context, _ map[string]any, sc *tool.SessionContext) *tool.Result {
	if r := requireAdmin(sc); r != nil {
		return r
	}

	admins, err := sc.Repo.User().ListAdmins(ctx)
	if err != nil {
		return tool.Error(err.Error())
	}

	emails := make([]string, len(admins))
	for i, a := range admins {
		emails[i] = a.Email
	}
	return tool.Success(map[string]any{"admins": emails})
}

func checkAdmin(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	if r := requireAdmin(sc); r != nil {
		return r
	}

	email := strings.TrimSpace(tool.StringArg(args, "email"))
	if email == "" {
		return tool.Invalid("email is required")
	}

	user, err := sc.Repo.User().FindByEmailLike(ctx, email)
	if err != nil {
		return tool.Error(err.Error())
	}
	if user == nil {
		return tool.Fail(types.StatusUserNotFound, "no authenticated user matches "+email)
	}
	return tool.Success(map[string]any{"email": user.Email, "is_admin": user.IsAdmin})
}

func restartDataService(ctx context.Context, _ map[string]any, sc *tool.SessionContext) *tool.Result {
	if r := requireAdmin(sc); r != nil {
		return r
	}

	if err := sc.Targetprocess.RestartService(ctx); err != nil {
		return tool.Error(err.Error())
	}
	return tool.Success(map[string]any{"restarted": true})
}
