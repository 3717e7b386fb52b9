package reorder

import (
	"errors"
	"time"

	"planboard/internal/conflict"
	"planboard/internal/model"
	"planboard/internal/timeline"
	"planboard/internal/timemath"
)

var ErrEstimateRequired = errors.New("set an estimate (minutes) on the task before placing it on the timeline")

// Placement is a planned timeline drop.
type Placement struct {
	TaskID    string                `json:"taskId"`
	Start     time.Time             `json:"start"`
	End       time.Time             `json:"end"`
	Conflicts []model.Task          `json:"conflicts,omitempty"`
	Update    model.UpdateTaskInput `json:"update"`
}

// PlanTimelineDrop computes where a task dropped on slot would be scheduled. existing is
// the set of already scheduled tasks checked for overlap; the caller decides whether a
// placement with conflicts may proceed.
func PlanTimelineDrop(task model.Task, slot Slot, cfg timeline.Config, mode timeline.Mode, ref time.Time, existing []model.Task) (Placement, error) {
	if task.Status == model.StatusDoing {
		return Placement{}, ErrDoingLocked
	}
	if task.EstimateMin == nil || *task.EstimateMin <= 0 {
		return Placement{}, ErrEstimateRequired
	}
	start, err := timeline.PointerToTime(cfg, mode, ref, slot.Fraction, slot.DayColumn)
	if err != nil {
		return Placement{}, err
	}
	return PlaceAt(task, start, existing)
}

// PlaceAt plans scheduling task at an explicit start time.
func PlaceAt(task model.Task, start time.Time, existing []model.Task) (Placement, error) {
	if task.Status == model.StatusDoing {
		return Placement{}, ErrDoingLocked
	}
	if task.EstimateMin == nil || *task.EstimateMin <= 0 {
		return Placement{}, ErrEstimateRequired
	}
	est := *task.EstimateMin
	end := start.Add(time.Duration(est) * time.Minute)
	todo := model.StatusTodo
	return Placement{
		TaskID:    task.ID,
		Start:     start,
		End:       end,
		Conflicts: conflict.Conflicts(existing, start, est, task.ID),
		Update: model.UpdateTaskInput{
			ID:             task.ID,
			Status:         &todo,
			ScheduledStart: &start,
			ScheduledEnd:   &end,
		},
	}, nil
}

// ApplyPlacement mirrors an accepted placement into a day snapshot: the task leaves its
// kanban column and appears on the timeline when the new start falls on the snapshot's
// day. A task scheduled onto another day stays visible as the last todo card.
func ApplyPlacement(d *model.TodayDTO, task model.Task, p Placement) {
	if d == nil {
		return
	}
	placed := task.Clone()
	p.Update.Apply(&placed)

	if s, i, ok := d.Kanban.Find(task.ID); ok {
		col := d.Kanban.Column(s)
		col = append(col[:i:i], col[i+1:]...)
		d.Kanban.SetColumn(s, col)
	}

	onDay := timemath.FormatDate(p.Start) == d.Today
	idx := -1
	for i := range d.Timeline {
		if d.Timeline[i].ID == task.ID {
			idx = i
			break
		}
	}
	switch {
	case onDay && idx >= 0:
		d.Timeline[idx] = placed
	case onDay:
		d.Timeline = append(d.Timeline, placed)
	default:
		if idx >= 0 {
			d.Timeline = append(d.Timeline[:idx:idx], d.Timeline[idx+1:]...)
		}
		todo := d.Kanban.Column(model.StatusTodo)
		placed.OrderIndex = NextOrderIndex(todo)
		d.Kanban.SetColumn(model.StatusTodo, append(todo, placed))
	}
}

// NextOrderIndex is the index that appends a task after tasks.
func NextOrderIndex(tasks []model.Task) int64 {
	var hi int64
	for _, t := range tasks {
		if t.OrderIndex > hi {
			hi = t.OrderIndex
		}
	}
	return hi + OrderStep
}
