package cli

import (
	"fmt"
	"strings"
	"time"

	"planboard/internal/timemath"
)

// parseWhen parses a start time:
// - HH:MM on the given date (YYYY-MM-DD; empty means today)
// - YYYY-MM-DDTHH:MM[:SS] / YYYY-MM-DD HH:MM (local)
// - RFC3339
func parseWhen(s, date string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if mins, err := timemath.ParseClock(s); err == nil {
		day, err := parseDay(date)
		if err != nil {
			return time.Time{}, err
		}
		return timemath.AtMinute(day, mins), nil
	}
	if t, err := timemath.ParseTimestamp(s, time.Local); err == nil {
		return t.In(time.Local), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected HH:MM, YYYY-MM-DD HH:MM, or RFC3339)", s)
}

// parseDay parses YYYY-MM-DD in local time; empty means today.
func parseDay(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return timemath.StartOfDay(timeNow()), nil
	}
	return timemath.ParseDate(date, time.Local)
}

// normalizeDate validates an optional YYYY-MM-DD flag value.
func normalizeDate(date string) (string, error) {
	if strings.TrimSpace(date) == "" {
		return "", nil
	}
	d, err := timemath.ParseDate(date, time.Local)
	if err != nil {
		return "", err
	}
	return timemath.FormatDate(d), nil
}

const timeLayout = time.RFC3339

var timeNow = time.Now

// timeZero lets the store pick its active date.
var timeZero time.Time

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
