package timeoff

import (
	"context"
	"fmt"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// logTime posts one time entry per requested weekday. Weekend dates are
// never sent upstream; they appear in the result as skipped_weekend.
func logTime(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
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

	entries := tool.ListArg(args, "entries")
	if len(entries) == 0 {
		return tool.Invalid("entries is required and must not be empty")
	}

	var results []map[string]any
	var logged, failed int
	for _, entry := range entries {
		date := tool.StringArg(entry, "date")
		normDate, err := targetprocess.ParseDate(date)
		if err != nil {
			return tool.Invalid(fmt.Sprintf("invalid date %q: use YYYY-MM-DD", date))
		}

		hours := 8.0
		if v, ok := entry["hours"]; ok {
			hours = asFloat(v)
			if hours <= 0 {
				return tool.Invalid(fmt.Sprintf("hours for %s must be a positive number", normDate))
			}
		}

		weekend, err := targetprocess.IsWeekend(normDate)
		if err != nil {
			return tool.Invalid(err.Error())
		}
		if weekend {
			results = append(results, map[string]any{
				"date":   normDate,
				"status": string(types.EntrySkippedWeekend),
			})
			continue
		}

		postErr := sc.Targetprocess.PostTime(ctx, &targetprocess.PostTimeRequest{
			Description:  normalized + " logged by assistant",
			Spent:        hours,
			Remain:       0,
			Date:         normDate,
			AssignableID: storyID,
			UserID:       sc.CorporateID,
		})
		if postErr != nil {
			logging.From(ctx).Error("time entry post failed",
				"date", normDate,
				"type", normalized,
				"error", postErr.Error(),
			)
			failed++
			results = append(results, map[string]any{
				"date":   normDate,
				"status": string(types.EntryFailed),
				"error":  postErr.Error(),
			})
			continue
		}

		logged++
		results = append(results, map[string]any{
			"date":   normDate,
			"status": string(types.EntryLogged),
			"hours":  hours,
		})
	}

	data := map[string]any{
		"type":    normalized,
		"results": results,
	}
	switch {
	case failed == 0:
		return tool.Success(data)
	case logged > 0 || failed < len(results):
		return tool.Partial(data)
	default:
		return &tool.Result{
			Status:       types.StatusToolError,
			Data:         data,
			ErrorDetails: "every time entry failed to post",
		}
	}
}
