package targetprocess

import (
	"regexp"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// DateLayout is the wire format for all dates exchanged with the API
const DateLayout = "2006-01-02"

// msDatePattern matches the legacy /Date(ms±zzzz)/ form the API sometimes
// returns. The zone suffix is display-only; the milliseconds are UTC epoch.
var msDatePattern = regexp.MustCompile(`^/Date\((-?\d+)(?:[+-]\d{4})?\)/$`)

// ParseDate normalizes an upstream date string to YYYY-MM-DD. It accepts
// either the plain layout or the /Date(ms±zzzz)/ form, taking the UTC
// calendar date of the epoch milliseconds.
func ParseDate(s string) (string, error) {
	if m := msDatePattern.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return "", goerr.Wrap(err, "invalid epoch milliseconds", goerr.V("value", s))
		}
		return time.UnixMilli(ms).UTC().Format(DateLayout), nil
	}

	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", goerr.Wrap(err, "unrecognized date format", goerr.V("value", s))
	}
	return s, nil
}

// IsWeekend reports whether a YYYY-MM-DD date falls on Saturday or Sunday
func IsWeekend(date string) (bool, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return false, goerr.Wrap(err, "invalid date", goerr.V("value", date))
	}
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday, nil
}
