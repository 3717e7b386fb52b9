// Package timemath holds the date and interval helpers shared by the timeline and the
// conflict detector. All minute values are minutes from local midnight.
package timemath

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour

	DateLayout = "2006-01-02"
)

// ParseClock parses "HH:MM" into minutes from midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("invalid clock %q (expected HH:MM)", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q: out of range", s)
	}
	return h*MinutesPerHour + m, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/MinutesPerHour, minutes%MinutesPerHour)
}

func MinutesOfDay(t time.Time) int {
	return t.Hour()*MinutesPerHour + t.Minute()
}

// Overlaps reports whether [start1,end1) and [start2,end2) intersect.
func Overlaps(start1, end1, start2, end2 int) bool {
	return start1 < end2 && end1 > start2
}

// Snap rounds the minute-within-hour to the nearest multiple of step, carrying into the
// next hour on overflow. A step <= 0 leaves the value unchanged.
func Snap(minuteOfDay, step int) int {
	if step <= 0 {
		return minuteOfDay
	}
	hour := minuteOfDay / MinutesPerHour
	within := minuteOfDay % MinutesPerHour
	snapped := int(math.Round(float64(within)/float64(step))) * step
	for snapped >= MinutesPerHour {
		hour++
		snapped -= MinutesPerHour
	}
	return hour*MinutesPerHour + snapped
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns the Monday midnight of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// AtMinute returns the wall-clock time at minutes past midnight on day's date, in day's
// location. On daylight-saving days this differs from midnight plus a duration.
func AtMinute(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, day.Location())
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// DayOffset returns the number of whole calendar days from `from` to `to`.
func DayOffset(from, to time.Time) int {
	f := StartOfDay(from)
	t := StartOfDay(to.In(from.Location()))
	// Round to absorb DST shifts.
	return int(math.Round(t.Sub(f).Hours() / 24))
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts RFC 3339 or a local "YYYY-MM-DDTHH:MM[:SS]" timestamp.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
