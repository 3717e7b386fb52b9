// Package recurrence decides which days a periodic task occurs on.
package recurrence

import (
	"fmt"
	"time"

	"planboard/internal/model"
	"planboard/internal/timemath"
)

const (
	StrategyDay   = "day"
	StrategyWeek  = "week"
	StrategyMonth = "month"
	StrategyYear  = "year"

	EndNever = "never"
	EndDate  = "date"
	EndCount = "count"
)

// Rule is a parsed periodicity.
type Rule struct {
	Strategy string
	Interval int
	Start    time.Time // midnight of the first occurrence, in loc
	// Clock is the minute of day instances start at; HasClock is false for date-only starts.
	Clock    int
	HasClock bool
	EndRule  string
	EndDate  time.Time
	EndCount int
}

// Parse validates p. start_date may be YYYY-MM-DD or a timestamp carrying the time of day
// instances start at.
func Parse(p model.Periodicity, loc *time.Location) (Rule, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := model.Validate(p); err != nil {
		return Rule{}, err
	}
	r := Rule{Strategy: p.Strategy, Interval: p.Interval, EndRule: p.EndRule}
	if r.Interval < 1 {
		r.Interval = 1
	}

	if d, err := timemath.ParseDate(p.StartDate, loc); err == nil {
		r.Start = d
	} else {
		ts, terr := timemath.ParseTimestamp(p.StartDate, loc)
		if terr != nil {
			return Rule{}, fmt.Errorf("periodicity start_date: %w", terr)
		}
		ts = ts.In(loc)
		r.Start = timemath.StartOfDay(ts)
		r.Clock = timemath.MinutesOfDay(ts)
		r.HasClock = true
	}

	switch r.EndRule {
	case EndDate:
		if p.EndDate == nil {
			return Rule{}, fmt.Errorf("periodicity end_rule=date requires end_date")
		}
		d, err := timemath.ParseDate(*p.EndDate, loc)
		if err != nil {
			return Rule{}, fmt.Errorf("periodicity end_date: %w", err)
		}
		r.EndDate = d
	case EndCount:
		if p.EndCount == nil || *p.EndCount < 1 {
			return Rule{}, fmt.Errorf("periodicity end_rule=count requires end_count >= 1")
		}
		r.EndCount = *p.EndCount
	}
	return r, nil
}

// Occurs reports whether the rule has an occurrence on day (any time of day).
func (r Rule) Occurs(day time.Time) bool {
	day = timemath.StartOfDay(day.In(r.Start.Location()))
	if day.Before(r.Start) {
		return false
	}
	if r.EndRule == EndDate && day.After(r.EndDate) {
		return false
	}
	n, ok := r.index(day)
	if !ok {
		return false
	}
	if r.EndRule == EndCount && n >= r.EndCount {
		return false
	}
	return true
}

// index returns the zero-based occurrence number of day.
func (r Rule) index(day time.Time) (int, bool) {
	switch r.Strategy {
	case StrategyDay:
		days := timemath.DayOffset(r.Start, day)
		return days / r.Interval, days%r.Interval == 0
	case StrategyWeek:
		days := timemath.DayOffset(r.Start, day)
		step := 7 * r.Interval
		return days / step, days%step == 0
	case StrategyMonth:
		if day.Day() != r.Start.Day() {
			return 0, false
		}
		months := (day.Year()-r.Start.Year())*12 + int(day.Month()) - int(r.Start.Month())
		return months / r.Interval, months%r.Interval == 0
	case StrategyYear:
		if day.Day() != r.Start.Day() || day.Month() != r.Start.Month() {
			return 0, false
		}
		years := day.Year() - r.Start.Year()
		return years / r.Interval, years%r.Interval == 0
	}
	return 0, false
}

// Occurs is Parse followed by Rule.Occurs; an invalid periodicity never occurs.
func Occurs(p model.Periodicity, day time.Time) bool {
	r, err := Parse(p, day.Location())
	if err != nil {
		return false
	}
	return r.Occurs(day)
}

// Instance returns the virtual copy of task shown on day: same task, with the schedule moved
// to the occurrence. ok is false when task does not recur on day.
func Instance(task model.Task, day time.Time) (model.Task, bool) {
	if task.Periodicity == nil {
		return model.Task{}, false
	}
	r, err := Parse(*task.Periodicity, day.Location())
	if err != nil || !r.Occurs(day) {
		return model.Task{}, false
	}
	inst := task.Clone()
	clock := r.Clock
	if !r.HasClock && task.ScheduledStart != nil {
		clock = timemath.MinutesOfDay(task.ScheduledStart.In(day.Location()))
	}
	start := timemath.AtMinute(timemath.StartOfDay(day), clock)
	inst.ScheduledStart = &start
	inst.ScheduledEnd = nil
	if task.ScheduledStart != nil && task.ScheduledEnd != nil {
		end := start.Add(task.ScheduledEnd.Sub(*task.ScheduledStart))
		inst.ScheduledEnd = &end
	}
	return inst, true
}
