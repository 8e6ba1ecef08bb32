package timeoff

import (
	"context"
	"fmt"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// deleteTime removes the caller's existing time entries on the given dates.
// Dates with no matching entry are reported distinctly.
func deleteTime(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	if sc.CorporateID == 0 {
		return tool.Fail(types.StatusUserNotLinked, "your account has no corporate identity binding")
	}

	nickname, normalized, err := storyEntity(tool.StringArg(args, "type"))
	if err != nil {
		return tool.Invalid(err.Error())
	}
	storyID, ok := sc.Entity(nickname)
	if !ok {
		return tool.Error(fmt.Sprintf("story id for %s is not available in the entity cache", normalized))
	}

	dates := tool.StringListArg(args, "dates")
	if len(dates) == 0 {
		return tool.Invalid("dates is required and must not be empty")
	}

	existing, err := sc.Targetprocess.ListTimes(ctx, sc.CorporateID, storyID)
	if err != nil {
		return tool.Error(err.Error())
	}
	byDate := make(map[string][]targetprocess.TimeEntry)
	for _, e := range existing {
		byDate[e.Date] = append(byDate[e.Date], e)
	}

	var results []map[string]any
	var deleted, notFound, failed int
	for _, raw := range dates {
		date, err := targetprocess.ParseDate(raw)
		if err != nil {
			return tool.Invalid(fmt.Sprintf("invalid date %q: use YYYY-MM-DD", raw))
		}

		matches := byDate[date]
		if len(matches) == 0 {
			notFound++
			results = append(results, map[string]any{
				"date":   date,
				"status": string(types.EntryNotFound),
			})
			continue
		}

		ok := true
		for _, m := range matches {
			if err := sc.Targetprocess.DeleteTime(ctx, m.ID); err != nil {
				logging.From(ctx).Error("time entry delete failed",
					"date", date,
					"entry_id", m.ID,
					"error", err.Error(),
				)
				ok = false
			}
		}
		if !ok {
			failed++
			results = append(results, map[string]any{
				"date":   date,
				"status": string(types.EntryFailed),
			})
			continue
		}

		deleted++
		results = append(results, map[string]any{
			"date":    date,
			"status":  string(types.EntryDeleted),
			"entries": len(matches),
		})
	}

	data := map[string]any{
		"type":    normalized,
		"results": results,
	}
	switch {
	case deleted == len(dates):
		return tool.Success(data)
	case deleted == 0 && failed == 0:
		return &tool.Result{
			Status: types.StatusNotFound,
			Reason: "no matching time entries on the requested dates",
			Data:   data,
		}
	case deleted > 0 || notFound > 0:
		return tool.Partial(data)
	default:
		return &tool.Result{
			Status:       types.StatusToolError,
			Data:         data,
			ErrorDetails: "every delete attempt failed",
		}
	}
}
