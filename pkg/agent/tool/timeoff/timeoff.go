// Package timeoff implements the PTO/WFH/Sick time tool functions backed by
// the Targetprocess time API and the analytics SQL gateway.
package timeoff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/potenza-io/opsbot/pkg/agent/tool"
)

// Special-entity nicknames resolved through the cache to upstream story ids
const (
	EntityPTOStory  = "PTO_STORY"
	EntityWFHStory  = "WFH_STORY"
	EntitySickStory = "SICK_STORY"
)

// PartialDayThreshold marks a day as partial when fewer hours are logged
const PartialDayThreshold = 7.0

// Handlers returns the handler table for the time-off delegate
func Handlers() map[string]tool.Handler {
	return map[string]tool.Handler{
		"timeoff.get_pto_balance":      getPTOBalance,
		"timeoff.get_today_roster":     getTodayRoster,
		"timeoff.get_upcoming_by_name": getUpcomingByName,
		"timeoff.log_time":             logTime,
		"timeoff.delete_time":          deleteTime,
		"timeoff.update_time":          updateTime,
	}
}

// storyEntity maps a user-facing time type to its cache nickname
func storyEntity(timeType string) (nickname string, normalized string, err error) {
	switch strings.ToUpper(strings.TrimSpace(timeType)) {
	case "PTO":
		return EntityPTOStory, "PTO", nil
	case "WFH":
		return EntityWFHStory, "WFH", nil
	case "SICK":
		return EntitySickStory, "Sick", nil
	default:
		return "", "", fmt.Errorf("unknown time type %q: must be PTO, WFH, or Sick", timeType)
	}
}

// asFloat coerces a gateway cell to a float64. The gateway returns JSON
// numbers as float64 but some views stringify numerics.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// asString coerces a gateway cell to a string
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
