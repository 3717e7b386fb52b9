package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"planboard/internal/model"
	"planboard/internal/recurrence"
	"planboard/internal/service"
	"planboard/internal/statusutil"
	"planboard/internal/timemath"
)

// ListToday returns the board, the day's timeline (including recurring instances) and the
// running timer for date (YYYY-MM-DD, in the store's zone).
func (s Store) ListToday(ctx context.Context, date string) (*model.TodayDTO, error) {
	loc := s.loc()
	day, err := timemath.ParseDate(date, loc)
	if err != nil {
		return nil, err
	}
	dayEnd := day.AddDate(0, 0, 1)

	var out *model.TodayDTO
	err = s.withTx(ctx, "list_today", "", func(tx *sql.Tx) error {
		tasks, err := listTasks(ctx, tx)
		if err != nil {
			return err
		}
		d := &model.TodayDTO{
			Today:     timemath.FormatDate(day),
			Kanban:    model.Kanban{Todo: []model.Task{}, Doing: []model.Task{}, Verify: []model.Task{}, Done: []model.Task{}},
			Timeline:  []model.Task{},
			ServerNow: s.now(),
		}
		byID := make(map[string]model.Task, len(tasks))
		for _, t := range tasks {
			t = localize(t, loc)
			byID[t.ID] = t
			d.Kanban.SetColumn(t.Status, append(d.Kanban.Column(t.Status), t))

			if t.ScheduledStart != nil && !t.ScheduledStart.Before(day) && t.ScheduledStart.Before(dayEnd) {
				d.Timeline = append(d.Timeline, t)
				continue
			}
			if inst, ok := recurrence.Instance(t, day); ok {
				d.Timeline = append(d.Timeline, inst)
			}
		}
		sort.SliceStable(d.Timeline, func(i, j int) bool {
			return d.Timeline[i].ScheduledStart.Before(*d.Timeline[j].ScheduledStart)
		})

		timer, err := currentTimer(ctx, tx)
		if err != nil {
			return err
		}
		if timer != nil {
			if t, ok := byID[timer.TaskID]; ok {
				cur := t.Clone()
				d.CurrentDoing = &cur
				d.CurrentTimer = timer
			}
		}
		out = d
		return nil
	})
	return out, err
}

func (s Store) CreateTask(ctx context.Context, in model.CreateTaskInput) (model.Task, error) {
	if err := model.Validate(in); err != nil {
		return model.Task{}, err
	}
	status := in.Status
	if status == "" {
		status = model.StatusTodo
	}
	if statusutil.RequiresDueDate(status) && blank(in.DueDate) {
		return model.Task{}, service.InvalidTransition("due_date is required for todo/doing tasks")
	}
	if status == model.StatusDoing {
		return model.Task{}, service.InvalidTransition("create the task first, then start it")
	}

	now := s.now()
	t := model.Task{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Status:         status,
		Priority:       in.Priority,
		Tags:           in.Tags,
		Subtasks:       in.Subtasks,
		Periodicity:    in.Periodicity,
		EstimateMin:    in.EstimateMin,
		ScheduledStart: in.ScheduledStart,
		ScheduledEnd:   in.ScheduledEnd,
		DueDate:        trimmed(in.DueDate),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	t = t.Clone()
	if status == model.StatusDone {
		t.CompletedAt = &now
	}

	err := s.withTx(ctx, "create_task", t.ID, func(tx *sql.Tx) error {
		idx, err := appendIndex(ctx, tx, status)
		if err != nil {
			return err
		}
		t.OrderIndex = idx
		return putTask(ctx, tx, t)
	})
	if err != nil {
		return model.Task{}, err
	}
	return localize(t, s.loc()), nil
}

// UpdateTask applies a partial update. Moving a task into or out of doing goes through
// StartTask/StopTask so the timer stays consistent.
func (s Store) UpdateTask(ctx context.Context, in model.UpdateTaskInput) error {
	if err := model.Validate(in); err != nil {
		return err
	}
	return s.withTx(ctx, "update_task", in.ID, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, in.ID)
		if err != nil {
			return err
		}
		prev := t.Status
		in.Apply(&t)
		t.DueDate = trimmed(t.DueDate)

		if prev != t.Status && (prev == model.StatusDoing || t.Status == model.StatusDoing) {
			return service.InvalidTransition("use start/stop to move a task into or out of doing")
		}
		if statusutil.RequiresDueDate(t.Status) && t.DueDate == nil {
			if in.ClearDueDate {
				return service.InvalidTransition("due_date cannot be cleared for todo/doing tasks")
			}
			return service.InvalidTransition("due_date is required for todo/doing tasks")
		}

		now := s.now()
		if prev != t.Status {
			switch {
			case t.Status == model.StatusDone:
				t.CompletedAt = &now
			case prev == model.StatusDone:
				t.CompletedAt = nil
			}
			if in.OrderIndex == nil {
				if t.OrderIndex, err = appendIndex(ctx, tx, t.Status); err != nil {
					return err
				}
			}
		}
		t.UpdatedAt = now
		return putTask(ctx, tx, t)
	})
}

func (s Store) ReorderTasks(ctx context.Context, items []model.ReorderInput) error {
	for _, it := range items {
		if err := model.Validate(it); err != nil {
			return err
		}
	}
	return s.withTx(ctx, "reorder_tasks", "", func(tx *sql.Tx) error {
		now := s.now()
		for _, it := range items {
			t, err := getTask(ctx, tx, it.ID)
			if err != nil {
				return err
			}
			if it.Status == nil || *it.Status == t.Status {
				if _, err := tx.ExecContext(ctx, `UPDATE tasks SET order_index = ?, updated_at_unixms = ? WHERE id = ?`,
					it.OrderIndex, unixMs(now), it.ID); err != nil {
					return err
				}
				continue
			}
			if t.Status == model.StatusDoing || *it.Status == model.StatusDoing {
				return service.InvalidTransition("tasks cannot be dragged into or out of doing")
			}
			if statusutil.RequiresDueDate(*it.Status) && t.DueDate == nil {
				return service.InvalidTransition("due_date is required for todo/doing tasks")
			}
			var completed any
			if *it.Status == model.StatusDone {
				completed = unixMs(now)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, order_index = ?, completed_at_unixms = ?, updated_at_unixms = ? WHERE id = ?`,
				string(*it.Status), it.OrderIndex, completed, unixMs(now), it.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s Store) MarkDone(ctx context.Context, id string) error {
	return s.withTx(ctx, "mark_done", id, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		switch t.Status {
		case model.StatusDone:
			return service.InvalidTransition("Task is already done")
		case model.StatusDoing:
			return service.InvalidTransition("Task is in progress; stop it first")
		}
		now := s.now()
		t.Status = model.StatusDone
		t.CompletedAt = &now
		t.UpdatedAt = now
		if t.OrderIndex, err = appendIndex(ctx, tx, model.StatusDone); err != nil {
			return err
		}
		return putTask(ctx, tx, t)
	})
}

func (s Store) ReopenTask(ctx context.Context, id string) error {
	return s.withTx(ctx, "reopen_task", id, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.Status != model.StatusDone {
			return service.InvalidTransition("Task is not done yet")
		}
		if t.DueDate == nil {
			return service.InvalidTransition("due_date is required for todo/doing tasks")
		}
		now := s.now()
		t.Status = model.StatusTodo
		t.CompletedAt = nil
		t.UpdatedAt = now
		if t.OrderIndex, err = appendIndex(ctx, tx, model.StatusTodo); err != nil {
			return err
		}
		return putTask(ctx, tx, t)
	})
}

// StartTask opens a timer for the task and moves it to doing. Any other running task is
// stopped first, so at most one timer is open.
func (s Store) StartTask(ctx context.Context, id string) error {
	return s.withTx(ctx, "start_task", id, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		switch t.Status {
		case model.StatusDoing:
			return service.InvalidTransition("Task is already in progress")
		case model.StatusDone:
			return service.InvalidTransition("Cannot start a done task")
		}
		if t.DueDate == nil {
			return service.InvalidTransition("due_date is required for todo/doing tasks")
		}

		now := s.now()
		timers, err := openTimers(ctx, tx)
		if err != nil {
			return err
		}
		stopped := map[string]bool{}
		for _, ot := range timers {
			if stopped[ot.timer.TaskID] {
				continue
			}
			if err := stopTask(ctx, tx, ot.timer.TaskID, now); err != nil {
				return err
			}
			stopped[ot.timer.TaskID] = true
		}
		// Doing tasks without a timer (e.g. imported rows) are released as well.
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = 'todo', updated_at_unixms = ? WHERE status = 'doing' AND id != ?`,
			unixMs(now), id); err != nil {
			return err
		}

		if _, err := insertTimer(ctx, tx, id, t.Status, now); err != nil {
			return err
		}
		t.Status = model.StatusDoing
		t.UpdatedAt = now
		if t.OrderIndex, err = appendIndex(ctx, tx, model.StatusDoing); err != nil {
			return err
		}
		return putTask(ctx, tx, t)
	})
}

func (s Store) StopTask(ctx context.Context, id string) error {
	return s.withTx(ctx, "stop_task", id, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.Status != model.StatusDoing {
			return service.InvalidTransition("Task is not in progress")
		}
		return stopTask(ctx, tx, id, s.now())
	})
}

func (s Store) DeleteTask(ctx context.Context, id string) error {
	return s.withTx(ctx, "delete_task", id, func(tx *sql.Tx) error {
		if _, err := getTask(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM timers WHERE task_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		return err
	})
}

// GetTask returns one task by id.
func (s Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	var t model.Task
	err := s.withTx(ctx, "get_task", id, func(tx *sql.Tx) error {
		var err error
		t, err = getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	return localize(t, s.loc()), nil
}

// TimerLog returns the closed and open timers of a task, oldest first.
func (s Store) TimerLog(ctx context.Context, taskID string) ([]model.Timer, error) {
	var out []model.Timer
	err := s.withTx(ctx, "timer_log", taskID, func(tx *sql.Tx) error {
		if _, err := getTask(ctx, tx, taskID); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, `SELECT id, task_id, start_at_unixms, stop_at_unixms, duration_sec
			FROM timers WHERE task_id = ? ORDER BY start_at_unixms, id`, taskID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				tm      model.Timer
				startMs int64
				stopMs  sql.NullInt64
			)
			if err := rows.Scan(&tm.ID, &tm.TaskID, &startMs, &stopMs, &tm.DurationSec); err != nil {
				return err
			}
			tm.StartAt = fromUnixMs(startMs)
			if stopMs.Valid {
				st := fromUnixMs(stopMs.Int64)
				tm.StopAt = &st
			}
			out = append(out, tm)
		}
		return rows.Err()
	})
	return out, err
}

func localize(t model.Task, loc *time.Location) model.Task {
	if t.ScheduledStart != nil {
		v := t.ScheduledStart.In(loc)
		t.ScheduledStart = &v
	}
	if t.ScheduledEnd != nil {
		v := t.ScheduledEnd.In(loc)
		t.ScheduledEnd = &v
	}
	return t
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func trimmed(s *string) *string {
	if blank(s) {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
