package planning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"planboard/internal/model"
	"planboard/internal/statusutil"
	"planboard/internal/timemath"
)

const tempIDPrefix = "pending-"

// CreateTask adds the task optimistically under a temporary id and swaps in the server's
// task once created. A todo task without a due date is due on the active date.
func (s *Store) CreateTask(ctx context.Context, in model.CreateTaskInput) (model.Task, error) {
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	if in.Status == model.StatusDoing {
		return model.Task{}, s.reject("create_task", "", ErrDoingLocked)
	}
	if statusutil.RequiresDueDate(in.Status) && in.DueDate == nil {
		due := s.ActiveDate()
		in.DueDate = &due
	}
	if err := model.Validate(in); err != nil {
		return model.Task{}, s.reject("create_task", "", invalidInput(err))
	}

	tempID := tempIDPrefix + uuid.NewString()
	p, err := s.begin("create_task", tempID, func(tx *txn) error {
		if tx.d == nil {
			return nil
		}
		now := s.now()
		placeTask(tx.d, model.Task{
			ID:             tempID,
			Title:          in.Title,
			Description:    in.Description,
			Status:         in.Status,
			Priority:       in.Priority,
			Tags:           in.Tags,
			Subtasks:       in.Subtasks,
			Periodicity:    in.Periodicity,
			OrderIndex:     appendIndex(tx.d, in.Status),
			EstimateMin:    in.EstimateMin,
			ScheduledStart: in.ScheduledStart,
			ScheduledEnd:   in.ScheduledEnd,
			DueDate:        in.DueDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}.Clone())
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	p.taskID = ""

	created, err := s.svc.CreateTask(ctx, in)
	err = s.finish(p, err, func(d *model.TodayDTO) {
		if _, ok := findTask(d, tempID); !ok {
			return
		}
		removeTask(d, tempID)
		placeTask(d, created.Clone())
	})
	if err != nil {
		return model.Task{}, err
	}
	return created, nil
}

// UpdateTask merges the provided fields. Status changes into or out of doing are refused;
// those go through StartTask and StopTask.
func (s *Store) UpdateTask(ctx context.Context, in model.UpdateTaskInput) error {
	if err := model.Validate(in); err != nil {
		return s.reject("update_task", in.ID, invalidInput(err))
	}
	p, err := s.begin("update_task", in.ID, func(tx *txn) error {
		cur, ok := findTask(tx.d, in.ID)
		if in.Status != nil {
			if *in.Status == model.StatusDoing && (!ok || cur.Status != model.StatusDoing) {
				return ErrDoingLocked
			}
			if ok && cur.Status == model.StatusDoing && *in.Status != model.StatusDoing {
				return ErrDoingLocked
			}
		}
		if !ok {
			return nil
		}
		next := cur.Clone()
		in.Apply(&next)
		if statusutil.RequiresDueDate(next.Status) && next.DueDate == nil {
			return ErrDueDateRequired
		}
		switch {
		case next.Status == model.StatusDone && cur.Status != model.StatusDone:
			now := s.now()
			next.CompletedAt = &now
		case next.Status != model.StatusDone:
			next.CompletedAt = nil
		}
		next.UpdatedAt = s.now()
		placeTask(tx.d, next)
		return nil
	})
	if err != nil {
		return err
	}
	return s.finish(p, s.svc.UpdateTask(ctx, in), nil)
}

func (s *Store) MarkDone(ctx context.Context, id string) error {
	p, err := s.begin("mark_done", id, func(tx *txn) error {
		t, ok := findTask(tx.d, id)
		if !ok {
			return nil
		}
		if t.Status == model.StatusDoing {
			return fmt.Errorf("stop the task before marking it done: %w", ErrDoingLocked)
		}
		now := s.now()
		t.Status = model.StatusDone
		t.CompletedAt = &now
		t.UpdatedAt = now
		placeTask(tx.d, t)
		return nil
	})
	if err != nil {
		return err
	}
	return s.finish(p, s.svc.MarkDone(ctx, id), nil)
}

func (s *Store) ReopenTask(ctx context.Context, id string) error {
	p, err := s.begin("reopen_task", id, func(tx *txn) error {
		t, ok := findTask(tx.d, id)
		if !ok {
			return nil
		}
		if t.DueDate == nil {
			return ErrDueDateRequired
		}
		t.Status = model.StatusTodo
		t.CompletedAt = nil
		t.UpdatedAt = s.now()
		placeTask(tx.d, t)
		return nil
	})
	if err != nil {
		return err
	}
	return s.finish(p, s.svc.ReopenTask(ctx, id), nil)
}

// StartTask moves the task to doing and opens its timer. A task without a due date is
// refused with ErrDueDateRequired; use StartTaskWithDueDate to supply one. Any other
// timed task is stopped.
func (s *Store) StartTask(ctx context.Context, id string) error {
	return s.start(ctx, id, nil)
}

// StartTaskWithDueDate sets the due date and starts the task as one operation.
func (s *Store) StartTaskWithDueDate(ctx context.Context, id, dueDate string) error {
	if _, err := timemath.ParseDate(dueDate, time.Local); err != nil {
		return s.reject("start_task", id, invalidInput(err))
	}
	return s.start(ctx, id, &dueDate)
}

func (s *Store) start(ctx context.Context, id string, due *string) error {
	p, err := s.begin("start_task", id, func(tx *txn) error {
		t, ok := findTask(tx.d, id)
		if !ok {
			return nil
		}
		if due != nil {
			v := *due
			t.DueDate = &v
		}
		if t.DueDate == nil {
			return ErrDueDateRequired
		}
		if t.Status == model.StatusDoing {
			return nil
		}
		for _, other := range tx.d.Kanban.Column(model.StatusDoing) {
			if other.ID == id {
				continue
			}
			if err := tx.claim(other.ID); err != nil {
				return err
			}
			other.Status = s.resumeStatus(other.ID)
			delete(s.resume, other.ID)
			placeTask(tx.d, other)
		}
		s.resume[id] = t.Status
		now := s.now()
		t.Status = model.StatusDoing
		t.UpdatedAt = now
		placeTask(tx.d, t)
		cur := t.Clone()
		tx.d.CurrentDoing = &cur
		tx.d.CurrentTimer = &model.Timer{TaskID: id, StartAt: now}
		return nil
	})
	if err != nil {
		return err
	}
	if due != nil {
		if err := s.svc.UpdateTask(ctx, model.UpdateTaskInput{ID: id, DueDate: due}); err != nil {
			return s.finish(p, err, nil)
		}
		// The server now holds the due date even if the start fails.
		p.reloadOnFailure = true
	}
	return s.finish(p, s.svc.StartTask(ctx, id), nil)
}

// StopTask closes the timer and returns the task to the status it had before it was started
// (todo when unknown).
func (s *Store) StopTask(ctx context.Context, id string) error {
	p, err := s.begin("stop_task", id, func(tx *txn) error {
		t, ok := findTask(tx.d, id)
		if !ok {
			return nil
		}
		if t.Status == model.StatusDoing {
			t.Status = s.resumeStatus(id)
			t.UpdatedAt = s.now()
			placeTask(tx.d, t)
		}
		delete(s.resume, id)
		if tx.d.CurrentDoing != nil && tx.d.CurrentDoing.ID == id {
			tx.d.CurrentDoing = nil
			tx.d.CurrentTimer = nil
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.finish(p, s.svc.StopTask(ctx, id), nil)
}

func (s *Store) resumeStatus(id string) model.Status {
	if st, ok := s.resume[id]; ok && st != model.StatusDoing && st != model.StatusDone {
		return st
	}
	return model.StatusTodo
}

// DeleteTask removes the task locally, then remotely.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	p, err := s.begin("delete_task", id, func(tx *txn) error {
		removeTask(tx.d, id)
		delete(s.resume, id)
		return nil
	})
	if err != nil {
		return err
	}
	return s.finish(p, s.svc.DeleteTask(ctx, id), nil)
}

// ReorderTasks applies a batch of positional updates. Every listed task is claimed.
func (s *Store) ReorderTasks(ctx context.Context, items []model.ReorderInput) error {
	if len(items) == 0 {
		return nil
	}
	for _, it := range items {
		if err := model.Validate(it); err != nil {
			return s.reject("reorder_tasks", it.ID, invalidInput(err))
		}
	}
	p, err := s.begin("reorder_tasks", items[0].ID, func(tx *txn) error {
		touched := map[model.Status]bool{}
		for _, it := range items {
			if err := tx.claim(it.ID); err != nil {
				return err
			}
			t, ok := findTask(tx.d, it.ID)
			if !ok {
				continue
			}
			if it.Status != nil && *it.Status != t.Status &&
				(t.Status == model.StatusDoing || *it.Status == model.StatusDoing) {
				return ErrDoingLocked
			}
			touched[t.Status] = true
			t.OrderIndex = it.OrderIndex
			if it.Status != nil {
				t.Status = *it.Status
			}
			touched[t.Status] = true
			placeTask(tx.d, t)
		}
		if tx.d != nil {
			for st := range touched {
				col := tx.d.Kanban.Column(st)
				sort.SliceStable(col, func(a, b int) bool { return col[a].OrderIndex < col[b].OrderIndex })
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.finish(p, s.svc.ReorderTasks(ctx, items), nil)
}

// Task returns the current copy of a task on the board or timeline.
func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := findTask(s.today, id)
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// IsTemporaryID reports whether id names an optimistic task not yet confirmed by the server.
func IsTemporaryID(id string) bool {
	return len(id) > len(tempIDPrefix) && id[:len(tempIDPrefix)] == tempIDPrefix
}

// IsBusy reports whether err is the in-flight refusal.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
