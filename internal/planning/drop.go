package planning

import (
	"context"
	"time"

	"planboard/internal/model"
	"planboard/internal/reorder"
	"planboard/internal/timeline"
	"planboard/internal/timemath"
)

// Confirmer asks the user whether a timeline placement may overlap the listed tasks.
type Confirmer interface {
	Confirm(ctx context.Context, conflicts []model.Task) bool
}

type ConfirmFunc func(ctx context.Context, conflicts []model.Task) bool

func (f ConfirmFunc) Confirm(ctx context.Context, conflicts []model.Task) bool {
	return f(ctx, conflicts)
}

// DropOptions describes the view a gesture ended in.
type DropOptions struct {
	// Resolver defaults to reorder.DefaultChain without hit-testing.
	Resolver reorder.Resolver
	// Confirmer is asked when a timeline drop overlaps other tasks. Without one, overlapping
	// drops are declined.
	Confirmer Confirmer
	Mode      timeline.Mode
	// Ref selects the day or week shown; defaults to the active date.
	Ref time.Time
}

// DropTask resolves and applies a finished drag gesture: a reorder within or across kanban
// columns, or a placement on the timeline. Failed drops roll back and reload.
func (s *Store) DropTask(ctx context.Context, g reorder.Gesture, opts DropOptions) error {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = reorder.DefaultChain(nil)
	}
	target, ok := resolver.Resolve(g)
	if !ok {
		return s.reject("drop_task", g.DraggedTaskID, ErrNoTarget)
	}
	if target.Kind == reorder.KindTimelineSlot {
		return s.dropOnTimeline(ctx, g.DraggedTaskID, target.Slot, opts)
	}

	var updates []model.ReorderInput
	p, err := s.begin("drop_task", g.DraggedTaskID, func(tx *txn) error {
		if tx.d == nil {
			return reorder.ErrTaskNotFound
		}
		m, err := reorder.PlanMove(tx.d.Kanban, g.DraggedTaskID, target)
		if err != nil {
			return err
		}
		if m.Noop {
			return errNothingToDo
		}
		for _, u := range m.Updates {
			if err := tx.claim(u.ID); err != nil {
				return err
			}
		}
		tx.d.Kanban = m.Kanban
		for _, u := range m.Updates {
			if u.Status == nil {
				continue
			}
			t, _ := findTask(tx.d, u.ID)
			placeTimeline(tx.d, t)
		}
		updates = m.Updates
		return nil
	})
	if err == errNothingToDo {
		return nil
	}
	if err != nil {
		return err
	}
	p.reloadOnFailure = true
	return s.finish(p, s.svc.ReorderTasks(ctx, updates), nil)
}

func (s *Store) dropOnTimeline(ctx context.Context, id string, slot reorder.Slot, opts DropOptions) error {
	s.mu.Lock()
	task, found := findTask(s.today, id)
	existing := scheduledTasks(s.today)
	ref := opts.Ref
	if ref.IsZero() {
		ref = s.refTimeLocked()
	}
	s.mu.Unlock()
	if !found {
		return s.reject("drop_task", id, reorder.ErrTaskNotFound)
	}

	mode := opts.Mode
	if mode == "" {
		mode = timeline.ModeDay
	}
	plan, err := reorder.PlanTimelineDrop(task, slot, s.timeline, mode, ref, existing)
	if err != nil {
		return s.reject("drop_task", id, err)
	}
	if len(plan.Conflicts) > 0 {
		if opts.Confirmer == nil || !opts.Confirmer.Confirm(ctx, plan.Conflicts) {
			s.log.Debug("timeline drop declined", "op", "drop_task", "task_id", id, "conflicts", len(plan.Conflicts))
			return newError("drop_task", id, ErrConflictDeclined)
		}
	}
	return s.schedule(ctx, "drop_task", id, plan.Start)
}

// ScheduleTask places a task on the timeline at start, ignoring overlaps. Use
// IsTimeSlotAvailable or the Conflicts of a planned drop to check first.
func (s *Store) ScheduleTask(ctx context.Context, id string, start time.Time) error {
	return s.schedule(ctx, "schedule_task", id, start)
}

func (s *Store) schedule(ctx context.Context, op, id string, start time.Time) error {
	var update model.UpdateTaskInput
	p, err := s.begin(op, id, func(tx *txn) error {
		task, ok := findTask(tx.d, id)
		if !ok {
			return reorder.ErrTaskNotFound
		}
		plan, err := reorder.PlaceAt(task, start, nil)
		if err != nil {
			return err
		}
		if task.DueDate == nil {
			// Scheduled tasks become todo, which needs a due date.
			due := timemath.FormatDate(start)
			plan.Update.DueDate = &due
		}
		reorder.ApplyPlacement(tx.d, task, plan)
		update = plan.Update
		return nil
	})
	if err != nil {
		return err
	}
	p.reloadOnFailure = true
	return s.finish(p, s.svc.UpdateTask(ctx, update), nil)
}

// placeTimeline keeps the timeline copy of a reclassified task in step with the board.
func placeTimeline(d *model.TodayDTO, t model.Task) {
	for i := range d.Timeline {
		if d.Timeline[i].ID == t.ID {
			d.Timeline[i].Status = t.Status
			d.Timeline[i].OrderIndex = t.OrderIndex
		}
	}
}

func (s *Store) refTimeLocked() time.Time {
	if s.today != nil {
		if d, err := timemath.ParseDate(s.today.Today, time.Local); err == nil {
			return d
		}
	}
	return s.now()
}
