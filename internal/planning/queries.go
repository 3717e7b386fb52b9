package planning

import (
	"time"

	"planboard/internal/conflict"
	"planboard/internal/model"
	"planboard/internal/timeline"
)

// BuildTimelineModel lays tasks out on the day or week containing ref.
func BuildTimelineModel(tasks []model.Task, cfg timeline.Config, ref time.Time, mode timeline.Mode, trackExtent float64) (timeline.Model, error) {
	return timeline.BuildModel(tasks, cfg, ref, mode, trackExtent)
}

func IsTimeSlotAvailable(tasks []model.Task, start time.Time, durationMinutes int) bool {
	return conflict.IsAvailable(tasks, start, durationMinutes)
}

// Timeline lays out every scheduled task the store knows about with the store's config.
func (s *Store) Timeline(mode timeline.Mode, ref time.Time, trackExtent float64) (timeline.Model, error) {
	s.mu.Lock()
	tasks := scheduledTasks(s.today)
	if ref.IsZero() {
		ref = s.refTimeLocked()
	}
	s.mu.Unlock()
	return timeline.BuildModel(tasks, s.timeline, ref, mode, trackExtent)
}

// SlotConflicts lists the scheduled tasks overlapping a proposed slot, ignoring excludeID.
func (s *Store) SlotConflicts(start time.Time, durationMinutes int, excludeID string) []model.Task {
	s.mu.Lock()
	tasks := scheduledTasks(s.today)
	s.mu.Unlock()
	return conflict.Conflicts(tasks, start, durationMinutes, excludeID)
}
