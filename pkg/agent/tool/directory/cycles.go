package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
	"github.com/potenza-io/opsbot/pkg/service/targetprocess"
)

// Cycle rows come from the analytics cycles view:
// cycle_name (numeric), start_date, end_date, is_current (flag),
// dollars_complete, percent_complete.

func cycleRowsToMaps(rows []map[string]any) []map[string]any {
	items := make([]map[string]any, len(rows))
	for i, row := range rows {
		items[i] = map[string]any{
			"cycle_name": row["cycle_name"],
			"start_date": row["start_date"],
			"end_date":   row["end_date"],
		}
	}
	return items
}

// getCurrentCycles lists cycles whose current flag is set
func getCurrentCycles(ctx context.Context, _ map[string]any, sc *tool.SessionContext) *tool.Result {
	rows, err := sc.Analytics.Execute(ctx,
		"SELECT cycle_name, start_date, end_date FROM cycles WHERE is_current = 1 ORDER BY cycle_name")
	if err != nil {
		return tool.Error(err.Error())
	}
	if len(rows) == 0 {
		return tool.Fail(types.StatusNoDataFound, "no current cycle found")
	}
	return tool.Success(map[string]any{"cycles": cycleRowsToMaps(rows)})
}

// getCycleForDate returns the cycle whose start and end dates bracket the
// given ISO date
func getCycleForDate(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	date := strings.TrimSpace(tool.StringArg(args, "date"))
	if _, err := time.Parse(targetprocess.DateLayout, date); err != nil {
		return tool.Invalid("date must be YYYY-MM-DD")
	}

	rows, err := sc.Analytics.Execute(ctx, fmt.Sprintf(
		"SELECT cycle_name, start_date, end_date FROM cycles WHERE start_date <= '%s' AND end_date >= '%s'",
		date, date))
	if err != nil {
		return tool.Error(err.Error())
	}
	if len(rows) == 0 {
		return tool.Fail(types.StatusNoDataFound, "no cycle covers "+date)
	}
	return tool.Success(map[string]any{"cycles": cycleRowsToMaps(rows)})
}

// getCycleDetails returns the full row of one cycle by its numeric name
func getCycleDetails(ctx context.Context, args map[string]any, sc *tool.SessionContext) *tool.Result {
	name, err := tool.Int64Arg(args, "cycle_name")
	if err != nil {
		return tool.Invalid("cycle_name must be a number")
	}

	rows, execErr := sc.Analytics.Execute(ctx, fmt.Sprintf(
		"SELECT * FROM cycles WHERE cycle_name = %d", name))
	if execErr != nil {
		return tool.Error(execErr.Error())
	}
	if len(rows) == 0 {
		return tool.Fail(types.StatusNoDataFound, fmt.Sprintf("cycle %d not found", name))
	}
	return tool.Success(map[string]any{"cycle": rows[0]})
}

// getLatestCycleCompletion reports the dollar and percentage completion of
// the most recently completed cycle
func getLatestCycleCompletion(ctx context.Context, _ map[string]any, sc *tool.SessionContext) *tool.Result {
	rows, err := sc.Analytics.Execute(ctx,
		"SELECT cycle_name, dollars_complete, percent_complete FROM cycles WHERE end_date < CURRENT_DATE ORDER BY end_date DESC LIMIT 1")
	if err != nil {
		return tool.Error(err.Error())
	}
	if len(rows) == 0 {
		return tool.Fail(types.StatusNoDataFound, "no completed cycle found")
	}

	row := rows[0]
	return tool.Success(map[string]any{
		"cycle_name":       row["cycle_name"],
		"dollars_complete": row["dollars_complete"],
		"percent_complete": row["percent_complete"],
	})
}
