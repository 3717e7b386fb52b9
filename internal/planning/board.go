package planning

import (
	"sort"

	"planboard/internal/model"
	"planboard/internal/reorder"
	"planboard/internal/timemath"
)

// findTask looks a task up on the board, then on the timeline.
func findTask(d *model.TodayDTO, id string) (model.Task, bool) {
	if d == nil {
		return model.Task{}, false
	}
	if s, i, ok := d.Kanban.Find(id); ok {
		return d.Kanban.Column(s)[i], true
	}
	for _, t := range d.Timeline {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func removeTask(d *model.TodayDTO, id string) {
	if d == nil {
		return
	}
	for _, s := range model.Statuses {
		col := d.Kanban.Column(s)
		out := col[:0:0]
		for _, t := range col {
			if t.ID != id {
				out = append(out, t)
			}
		}
		if len(out) != len(col) {
			d.Kanban.SetColumn(s, out)
		}
	}
	tl := d.Timeline[:0:0]
	for _, t := range d.Timeline {
		if t.ID != id {
			tl = append(tl, t)
		}
	}
	d.Timeline = tl
	if d.CurrentDoing != nil && d.CurrentDoing.ID == id {
		d.CurrentDoing = nil
		d.CurrentTimer = nil
	}
}

// placeTask puts t where the board shows it: in its status column ordered by order_index
// and, when scheduled on the day, on the timeline. Any previous copy is replaced.
func placeTask(d *model.TodayDTO, t model.Task) {
	if d == nil {
		return
	}
	tlIdx := -1
	for i := range d.Timeline {
		if d.Timeline[i].ID == t.ID {
			tlIdx = i
			break
		}
	}
	if s, i, ok := d.Kanban.Find(t.ID); ok {
		col := d.Kanban.Column(s)
		d.Kanban.SetColumn(s, append(col[:i:i], col[i+1:]...))
	}

	col := d.Kanban.Column(t.Status)
	at := sort.Search(len(col), func(i int) bool { return col[i].OrderIndex > t.OrderIndex })
	next := make([]model.Task, 0, len(col)+1)
	next = append(next, col[:at]...)
	next = append(next, t)
	next = append(next, col[at:]...)
	d.Kanban.SetColumn(t.Status, next)

	onDay := t.ScheduledStart != nil && timemath.FormatDate(*t.ScheduledStart) == d.Today
	switch {
	case onDay && tlIdx >= 0:
		d.Timeline[tlIdx] = t
	case onDay:
		d.Timeline = append(d.Timeline, t)
	case tlIdx >= 0 && t.Periodicity == nil:
		d.Timeline = append(d.Timeline[:tlIdx:tlIdx], d.Timeline[tlIdx+1:]...)
	}

	if d.CurrentDoing != nil && d.CurrentDoing.ID == t.ID {
		cp := t.Clone()
		d.CurrentDoing = &cp
	}
}

// scheduledTasks lists every task with a start that the day knows about, once each.
func scheduledTasks(d *model.TodayDTO) []model.Task {
	if d == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []model.Task
	add := func(t model.Task) {
		if t.ScheduledStart == nil || seen[t.ID] {
			return
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	for _, t := range d.Timeline {
		add(t)
	}
	for _, s := range model.Statuses {
		for _, t := range d.Kanban.Column(s) {
			add(t)
		}
	}
	return out
}

func appendIndex(d *model.TodayDTO, s model.Status) int64 {
	if d == nil {
		return reorder.OrderStep
	}
	return reorder.NextOrderIndex(d.Kanban.Column(s))
}
