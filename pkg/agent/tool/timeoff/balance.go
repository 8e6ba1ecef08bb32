package timeoff

import (
	"context"
	"fmt"
	"math"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
	"github.com/potenza-io/opsbot/pkg/domain/types"
)

// balanceQuery combines the yearly allotment, rollover, hours logged so far
// this year, and future-dated PTO hours within the current year into one row
const balanceQuery = `
SELECT
  COALESCE(SUM(CASE WHEN t.date <= CURRENT_DATE THEN t.spent ELSE 0 END), 0) AS pto_hours_logged,
  MAX(a.allotted_pto)                                                        AS allotted_pto,
  MAX(a.rollover)                                                            AS rollover,
  COALESCE(SUM(CASE WHEN t.date > CURRENT_DATE THEN t.spent ELSE 0 END), 0)  AS upcoming_pto_hours
FROM pto_allotments a
LEFT JOIN pto_time_entries t
  ON t.corporate_id = a.corporate_id
 AND EXTRACT(YEAR FROM t.date) = EXTRACT(YEAR FROM CURRENT_DATE)
WHERE a.corporate_id = %d
  AND a.year = EXTRACT(YEAR FROM CURRENT_DATE)`

// getPTOBalance reports the caller's remaining PTO hours:
// allotted + rollover - logged - upcoming, rounded to 2 decimals.
func getPTOBalance(ctx context.Context, _ map[string]any, sc *tool.SessionContext) *tool.Result {
	if sc.CorporateID == 0 {
		return tool.Fail(types.StatusUserNotLinked, "your account has no corporate identity binding")
	}

	rows, err := sc.Analytics.Execute(ctx, fmt.Sprintf(balanceQuery, sc.CorporateID))
	if err != nil {
		return tool.Error(err.Error())
	}
	if len(rows) == 0 {
		return tool.Fail(types.StatusNoDataFound, "no PTO allotment found for the current year")
	}

	row := rows[0]
	logged := asFloat(row["pto_hours_logged"])
	allotted := asFloat(row["allotted_pto"])
	rollover := asFloat(row["rollover"])
	upcoming := asFloat(row["upcoming_pto_hours"])

	remaining := math.Round((allotted+rollover-logged-upcoming)*100) / 100

	return tool.Success(map[string]any{
		"remaining_pto_hours": remaining,
		"allotted_pto":        allotted,
		"rollover":            rollover,
		"pto_hours_logged":    logged,
		"upcoming_pto_hours":  upcoming,
	})
}
