package timeoff

import (
	"context"
	"fmt"
	"strings"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

// todayRosterQuery lists today's actuals rows flagged as PTO or booked on
// the WFH story. The daily_actuals view is keyed one row per user per type.
const todayRosterQuery = `
SELECT DISTINCT user_name, spent_hours
FROM daily_actuals
WHERE actual_date = CURRENT_DATE
  AND %s`

// getTodayRoster returns who is on PTO or WFH today, with a partial-day
// flag when fewer than 7 hours are booked
func getTodayRoster(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	timeType := strings.ToUpper(strings.TrimSpace(tool.StringArg(args, "type")))

	var predicate string
	switch timeType {
	case "PTO":
		predicate = "is_pto = 1"
	case "WFH":
		id, ok := sc.Entity(EntityWFHStory)
		if !ok {
			return tool.Error("WFH story id is not available in the entity cache")
		}
		predicate = "story_id = " + asString(id)
	default:
		return tool.Invalid("type must be PTO or WFH")
	}

	rows, err := sc.Analytics.Execute(ctx, strings.Replace(todayRosterQuery, "%s", predicate, 1))
	if err != nil {
		return tool.Error(err.Error())
	}
	if len(rows) == 0 {
		return tool.Fail(types.StatusNoDataFound, "nobody is on "+timeType+" today")
	}

	seen := map[string]bool{}
	var people []map[string]any
	for _, row := range rows {
		name := asString(row["user_name"])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		hours := asFloat(row["spent_hours"])
		people = append(people, map[string]any{
			"name":        name,
			"hours":       hours,
			"partial_day": hours < PartialDayThreshold,
		})
	}

	return tool.Success(map[string]any{
		"type":   timeType,
		"people": people,
	})
}

// upcomingQuery is a pre-filtered view of future-dated time-off hours
const upcomingQuery = `
SELECT user_name, actual_date, spent_hours, time_type
FROM upcoming_time_off
WHERE LOWER(user_name) LIKE LOWER('%%%s%%')
ORDER BY actual_date`

// getUpcomingByName returns future PTO/WFH entries for users whose name
// contains the given substring (case-insensitive)
func getUpcomingByName(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	name := strings.TrimSpace(tool.StringArg(args, "name"))
	if name == "" {
		return tool.Invalid("name is required")
	}

	// Single quotes are doubled to keep the predicate literal
	query := fmt.Sprintf(upcomingQuery, strings.ReplaceAll(name, "'", "''"))
	rows, err := sc.Analytics.Execute(ctx, query)
	if err != nil {
		return tool.Error(err.Error())
	}
	if len(rows) == 0 {
		return tool.Fail(types.StatusNoDataFound, "no upcoming time off found for "+name)
	}

	entries := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		hours := asFloat(row["spent_hours"])
		entries = append(entries, map[string]any{
			"name":        asString(row["user_name"]),
			"date":        asString(row["actual_date"]),
			"type":        asString(row["time_type"]),
			"hours":       hours,
			"partial_day": hours < PartialDayThreshold,
		})
	}

	return tool.Success(map[string]any{"entries": entries})
}
