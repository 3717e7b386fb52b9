// Package timeline lays out scheduled tasks on a day or week time axis.
//
// The model is derived from the task list on every call and never persisted. Positions are
// expressed both as fractions of a caller-supplied track extent (pixels, rows, cells) and as
// percentages of the configured range.
package timeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"planboard/internal/model"
	"planboard/internal/timemath"
)

type Mode string

const (
	ModeDay  Mode = "day"
	ModeWeek Mode = "week"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDay, "":
		return ModeDay, nil
	case ModeWeek:
		return ModeWeek, nil
	}
	return "", fmt.Errorf("invalid timeline mode: %q (expected day|week)", s)
}

// Config is the per-session timeline configuration.
type Config struct {
	DayStart       string `json:"dayStart" mapstructure:"dayStart" yaml:"dayStart" validate:"required"`
	DayEnd         string `json:"dayEnd" mapstructure:"dayEnd" yaml:"dayEnd" validate:"required"`
	MinSlotMinutes int    `json:"minSlotMinutes" mapstructure:"minSlotMinutes" yaml:"minSlotMinutes" validate:"gt=0"`
	SnapMinutes    int    `json:"snapMinutes" mapstructure:"snapMinutes" yaml:"snapMinutes" validate:"gt=0,max=60"`
}

func DefaultConfig() Config {
	return Config{
		DayStart:       "06:00",
		DayEnd:         "22:00",
		MinSlotMinutes: 15,
		SnapMinutes:    15,
	}
}

// Validate checks the config and returns the range in minutes from midnight.
func (c Config) Validate() (start, end int, err error) {
	if err := model.Validate(c); err != nil {
		return 0, 0, err
	}
	start, err = timemath.ParseClock(c.DayStart)
	if err != nil {
		return 0, 0, fmt.Errorf("dayStart: %w", err)
	}
	end, err = timemath.ParseClock(c.DayEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("dayEnd: %w", err)
	}
	if start >= end {
		return 0, 0, fmt.Errorf("dayStart %s must be before dayEnd %s", c.DayStart, c.DayEnd)
	}
	return start, end, nil
}

type BusyBlock struct {
	ID              string      `json:"id"`
	Start           time.Time   `json:"start"`
	DurationMinutes int         `json:"durationMinutes"`
	Task            *model.Task `json:"task,omitempty"`

	Offset    float64 `json:"offset"`
	Extent    float64 `json:"extent"`
	OffsetPct float64 `json:"offsetPct"`
	ExtentPct float64 `json:"extentPct"`
}

type FreeBlock struct {
	ID              string    `json:"id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"durationMinutes"`

	Offset    float64 `json:"offset"`
	Extent    float64 `json:"extent"`
	OffsetPct float64 `json:"offsetPct"`
	ExtentPct float64 `json:"extentPct"`
}

// Lane is one day of the timeline. DayOffset is 0 in day mode and 0–6 in week mode.
type Lane struct {
	Date      string      `json:"date"`
	DayOffset int         `json:"dayOffset"`
	Busy      []BusyBlock `json:"busy"`
	Free      []FreeBlock `json:"free"`
}

type Model struct {
	Mode         Mode    `json:"mode"`
	RangeStart   string  `json:"rangeStart"`
	RangeEnd     string  `json:"rangeEnd"`
	TotalMinutes int     `json:"totalMinutes"`
	TrackExtent  float64 `json:"trackExtent"`
	Lanes        []Lane  `json:"lanes"`
}

// BuildModel partitions tasks into busy and free blocks for the day (or Monday-start week)
// containing ref.
func BuildModel(tasks []model.Task, cfg Config, ref time.Time, mode Mode, trackExtent float64) (Model, error) {
	startMin, endMin, err := cfg.Validate()
	if err != nil {
		return Model{}, err
	}
	total := endMin - startMin

	first := timemath.StartOfDay(ref)
	days := 1
	if mode == ModeWeek {
		first = timemath.StartOfWeek(ref)
		days = 7
	}

	m := Model{
		Mode:         mode,
		RangeStart:   cfg.DayStart,
		RangeEnd:     cfg.DayEnd,
		TotalMinutes: total,
		TrackExtent:  trackExtent,
		Lanes:        make([]Lane, days),
	}
	for i := range m.Lanes {
		m.Lanes[i] = Lane{Date: timemath.FormatDate(first.AddDate(0, 0, i)), DayOffset: i}
	}

	seen := map[string]bool{}
	for i := range tasks {
		t := tasks[i]
		if t.ScheduledStart == nil || seen[t.ID] {
			continue
		}
		start := t.ScheduledStart.In(ref.Location())
		off := timemath.DayOffset(first, start)
		if off < 0 || off >= days {
			continue
		}
		mins := timemath.MinutesOfDay(start)
		if mins < startMin || mins > endMin {
			continue
		}
		dur := t.DurationMinutes()
		if dur <= 0 {
			dur = cfg.MinSlotMinutes
		}
		if mins+dur > endMin {
			dur = endMin - mins
		}
		if dur <= 0 {
			// Starts exactly at dayEnd: nothing of it is on the track.
			continue
		}
		seen[t.ID] = true

		task := t.Clone()
		b := BusyBlock{
			ID:              t.ID,
			Start:           start,
			DurationMinutes: dur,
			Task:            &task,
		}
		b.Offset, b.OffsetPct = position(mins-startMin, total, trackExtent)
		b.Extent, b.ExtentPct = position(dur, total, trackExtent)
		m.Lanes[off].Busy = append(m.Lanes[off].Busy, b)
	}

	for i := range m.Lanes {
		lane := &m.Lanes[i]
		sort.SliceStable(lane.Busy, func(a, b int) bool {
			if !lane.Busy[a].Start.Equal(lane.Busy[b].Start) {
				return lane.Busy[a].Start.Before(lane.Busy[b].Start)
			}
			return lane.Busy[a].ID < lane.Busy[b].ID
		})
		lane.Free = freeBlocks(lane, first.AddDate(0, 0, i), cfg, startMin, endMin, trackExtent)
	}
	return m, nil
}

func freeBlocks(lane *Lane, day time.Time, cfg Config, startMin, endMin int, trackExtent float64) []FreeBlock {
	total := endMin - startMin
	var out []FreeBlock
	add := func(from, to int) {
		if to-from < cfg.MinSlotMinutes {
			return
		}
		f := FreeBlock{
			ID:              fmt.Sprintf("free-%d-%s", lane.DayOffset, timemath.FormatClock(from)),
			Start:           timemath.AtMinute(day, from),
			DurationMinutes: to - from,
		}
		f.Offset, f.OffsetPct = position(from-startMin, total, trackExtent)
		f.Extent, f.ExtentPct = position(to-from, total, trackExtent)
		out = append(out, f)
	}

	cursor := startMin
	for _, b := range lane.Busy {
		bs := timemath.MinutesOfDay(b.Start)
		if bs > cursor {
			add(cursor, bs)
		}
		if be := bs + b.DurationMinutes; be > cursor {
			cursor = be
		}
	}
	if cursor < endMin {
		add(cursor, endMin)
	}
	return out
}

func position(minutes, total int, trackExtent float64) (extent, pct float64) {
	frac := float64(minutes) / float64(total)
	return frac * trackExtent, frac * 100
}

// PointerToTime maps a pointer position to a snapped start time. fraction is the pointer's
// position along the time axis in [0,1]; in week mode dayColumn (0–6) selects the day.
func PointerToTime(cfg Config, mode Mode, ref time.Time, fraction float64, dayColumn int) (time.Time, error) {
	startMin, endMin, err := cfg.Validate()
	if err != nil {
		return time.Time{}, err
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	total := endMin - startMin
	raw := startMin + int(math.Floor(fraction*float64(total)))
	snapped := timemath.Snap(raw, cfg.SnapMinutes)
	if snapped < startMin {
		snapped = startMin
	}
	if snapped > endMin {
		snapped = endMin
	}

	day := timemath.StartOfDay(ref)
	if mode == ModeWeek {
		if dayColumn < 0 {
			dayColumn = 0
		}
		if dayColumn > 6 {
			dayColumn = 6
		}
		day = timemath.StartOfWeek(ref).AddDate(0, 0, dayColumn)
	}
	return timemath.AtMinute(day, snapped), nil
}

// FractionOf maps t to the middle of its minute on the axis, so PointerToTime lands on
// t's minute before snapping.
func FractionOf(cfg Config, t time.Time) (float64, error) {
	startMin, endMin, err := cfg.Validate()
	if err != nil {
		return 0, err
	}
	return (float64(timemath.MinutesOfDay(t)-startMin) + 0.5) / float64(endMin-startMin), nil
}
