package admin

import (
	"context"
	"strings"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/model"
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

// startActingAs resolves the target by email or directory name and opens
// an impersonation session for the calling admin. The target must already
// be linked to a Slack account; the session expires after
// types.ActingAsTTL and is refreshed on later starts.
func startActingAs(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	if r := requireAdmin(sc); r != nil {
		return r
	}

	target, res := resolveTarget(ctx, args, sc)
	if res != nil {
		return res
	}
	if target.SlackID == sc.ActorSlackID {
		return tool.Invalid("you cannot act as yourself")
	}

	rec := &model.ActingAs{
		AdminSlackID: sc.ActorSlackID,
		UserSlackID:  target.SlackID,
	}
	if err := sc.Repo.ActAs().Put(ctx, rec); err != nil {
		return tool.Error(err.Error())
	}
	return tool.Success(map[string]any{
		"acting_as":       target.Email,
		"expires_minutes": int(types.ActingAsTTL.Minutes()),
	})
}

func stopActingAs(ctx context.Context, _ map[string]any, sc *tool.SessionContext) *tool.Result {
	if r := requireAdmin(sc); r != nil {
		return r
	}

	rec, err := sc.Repo.ActAs().Get(ctx, sc.ActorSlackID)
	if err != nil {
		return tool.Error(err.Error())
	}
	if rec == nil {
		return tool.Fail(types.StatusNotFound, "no act-as session is active")
	}

	if err := sc.Repo.ActAs().Delete(ctx, sc.ActorSlackID); err != nil {
		return tool.Error(err.Error())
	}
	return tool.Success(map[string]any{"stopped": true})
}

func currentActingAs(ctx context.Context, _ map[string]any, sc *tool.SessionContext) *tool.Result {
	if r := requireAdmin(sc); r != nil {
		return r
	}

	rec, err := sc.Repo.ActAs().Get(ctx, sc.ActorSlackID)
	if err != nil {
		return tool.Error(err.Error())
	}
	if rec == nil {
		return tool.Fail(types.StatusNotFound, "no act-as session is active")
	}

	user, err := sc.Repo.User().Get(ctx, rec.UserSlackID)
	if err != nil {
		return tool.Error(err.Error())
	}
	data := map[string]any{"user_slack_id": string(rec.UserSlackID)}
	if user != nil {
		data["acting_as"] = user.Email
	}
	return tool.Success(data)
}

// resolveTarget finds a linked user either by an email fragment or by a
// first/last name directory lookup. Returns a non-nil Result on failure.
func resolveTarget(ctx context.Context, args map[string]any, sc *tool.SessionContext) (*model.User, *tool.Result) {
	if email := strings.TrimSpace(tool.StringArg(args, "email")); email != "" {
		user, err := sc.Repo.User().FindByEmailLike(ctx, email)
		if err != nil {
			return nil, tool.Error(err.Error())
		}
		if user == nil {
			return nil, tool.Fail(types.StatusUserNotFound, "no authenticated user matches "+email)
		}
		return user, nil
	}

	firstName := strings.TrimSpace(tool.StringArg(args, "first_name"))
	lastName := strings.TrimSpace(tool.StringArg(args, "last_name"))
	if firstName == "" && lastName == "" {
		return nil, tool.Invalid("provide an email or a first_name/last_name to act as")
	}

	matches, err := sc.Targetprocess.FindUsersByName(ctx, firstName, lastName)
	if err != nil {
		return nil, tool.Error(err.Error())
	}
	for _, m := range matches {
		if m.Email == "" {
			continue
		}
		user, err := sc.Repo.User().GetByEmail(ctx, strings.ToLower(m.Email))
		if err != nil {
			return nil, tool.Error(err.Error())
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, tool.Fail(types.StatusUserNotFound,
		"no authenticated user matches "+strings.TrimSpace(firstName+" "+lastName))
}
