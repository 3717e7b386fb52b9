// Package conflict decides whether a proposed time slot collides with scheduled tasks.
package conflict

import (
	"time"

	"planboard/internal/model"
	"planboard/internal/timemath"
)

// IsAvailable reports whether [proposedStart, proposedStart+durationMinutes) is free of every
// scheduled task in existing on the same calendar day.
func IsAvailable(existing []model.Task, proposedStart time.Time, durationMinutes int) bool {
	return len(Conflicts(existing, proposedStart, durationMinutes, "")) == 0
}

// Conflicts returns the tasks whose scheduled interval intersects the proposal. The task
// with id excludeID (typically the one being moved) is ignored, as are unscheduled and
// zero-length tasks and tasks on another day. Intervals are minutes from their own
// midnight, so a task running past midnight only blocks the day it starts on.
func Conflicts(existing []model.Task, proposedStart time.Time, durationMinutes int, excludeID string) []model.Task {
	if durationMinutes <= 0 {
		return nil
	}
	pStart := timemath.MinutesOfDay(proposedStart)
	pEnd := pStart + durationMinutes

	var out []model.Task
	for _, t := range existing {
		if t.ScheduledStart == nil || (excludeID != "" && t.ID == excludeID) {
			continue
		}
		if !timemath.SameDay(proposedStart, *t.ScheduledStart) {
			continue
		}
		d := t.DurationMinutes()
		if d <= 0 {
			continue
		}
		s := timemath.MinutesOfDay(t.ScheduledStart.In(proposedStart.Location()))
		if timemath.Overlaps(s, s+d, pStart, pEnd) {
			out = append(out, t)
		}
	}
	return out
}
