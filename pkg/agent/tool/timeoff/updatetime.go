package timeoff

import (
	"context"
	"fmt"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// updateTime moves or resizes existing time entries. Each item must name at
// least one of new_date / new_hours; entries already matching the requested
// values are reported as no_change_needed.
func updateTime(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
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

	updates := tool.ListArg(args, "updates")
	if len(updates) == 0 {
		return tool.Invalid("updates is required and must not be empty")
	}

	existing, err := sc.Targetprocess.ListTimes(ctx, sc.CorporateID, storyID)
	if err != nil {
		return tool.Error(err.Error())
	}
	byDate := make(map[string]targetprocess.TimeEntry)
	for _, e := range existing {
		// First entry per date wins; duplicates are updated one at a time
		if _, ok := byDate[e.Date]; !ok {
			byDate[e.Date] = e
		}
	}

	var results []map[string]any
	var updated, failed, notFound, noChange int
	for _, item := range updates {
		origRaw := tool.StringArg(item, "original_date")
		origDate, err := targetprocess.ParseDate(origRaw)
		if err != nil {
			return tool.Invalid(fmt.Sprintf("invalid original_date %q: use YYYY-MM-DD", origRaw))
		}

		var newDate *string
		if s := tool.StringArg(item, "new_date"); s != "" {
			d, err := targetprocess.ParseDate(s)
			if err != nil {
				return tool.Invalid(fmt.Sprintf("invalid new_date %q: use YYYY-MM-DD", s))
			}
			newDate = &d
		}
		var newHours *float64
		if v, ok := item["new_hours"]; ok && v != nil {
			h := asFloat(v)
			if h <= 0 {
				return tool.Invalid(fmt.Sprintf("new_hours for %s must be a positive number", origDate))
			}
			newHours = &h
		}
		if newDate == nil && newHours == nil {
			return tool.Invalid(fmt.Sprintf("item for %s must set new_date or new_hours", origDate))
		}

		entry, ok := byDate[origDate]
		if !ok {
			notFound++
			results = append(results, map[string]any{
				"original_date": origDate,
				"status":        string(types.EntryNotFound),
			})
			continue
		}

		// Drop fields that already match so the upstream payload carries
		// only real changes
		if newDate != nil && *newDate == entry.Date {
			newDate = nil
		}
		if newHours != nil && *newHours == entry.Spent {
			newHours = nil
		}
		if newDate == nil && newHours == nil {
			noChange++
			results = append(results, map[string]any{
				"original_date": origDate,
				"status":        string(types.EntryNoChangeNeeded),
			})
			continue
		}

		if err := sc.Targetprocess.UpdateTime(ctx, entry.ID, newDate, newHours); err != nil {
			logging.From(ctx).Error("time entry update failed",
				"original_date", origDate,
				"entry_id", entry.ID,
				"error", err.Error(),
			)
			failed++
			results = append(results, map[string]any{
				"original_date": origDate,
				"status":        string(types.EntryFailed),
				"error":         err.Error(),
			})
			continue
		}

		updated++
		results = append(results, map[string]any{
			"original_date": origDate,
			"status":        string(types.EntryUpdated),
		})
	}

	data := map[string]any{
		"type":             normalized,
		"results":          results,
		"updated":          updated,
		"failed":           failed,
		"not_found":        notFound,
		"no_change_needed": noChange,
	}
	switch {
	case failed == len(updates):
		return &tool.Result{
			Status:       types.StatusToolError,
			Data:         data,
			ErrorDetails: "every update attempt failed",
		}
	case failed > 0:
		return tool.Partial(data)
	case notFound == len(updates):
		return &tool.Result{
			Status: types.StatusNotFound,
			Reason: "no matching time entries on the requested dates",
			Data:   data,
		}
	case notFound > 0:
		return tool.Partial(data)
	default:
		return tool.Success(data)
	}
}
