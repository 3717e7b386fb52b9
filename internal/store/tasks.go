package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planboard/internal/model"
	"planboard/internal/reorder"
	"planboard/internal/service"
	"planboard/internal/statusutil"
)

const taskColumns = `id, title, description, status, priority,
	tags_json, subtasks_json, periodicity_json,
	order_index, estimate_min,
	scheduled_start, scheduled_end, due_date,
	created_at_unixms, updated_at_unixms, completed_at_unixms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (model.Task, error) {
	var (
		t                                   model.Task
		status, priority, tagsJSON, subJSON string
		desc, periodJSON, start, end, due   sql.NullString
		estimate, completedMs               sql.NullInt64
		createdMs, updatedMs                int64
	)
	if err := r.Scan(
		&t.ID, &t.Title, &desc, &status, &priority,
		&tagsJSON, &subJSON, &periodJSON,
		&t.OrderIndex, &estimate,
		&start, &end, &due,
		&createdMs, &updatedMs, &completedMs,
	); err != nil {
		return model.Task{}, err
	}

	st, err := statusutil.NormalizeStatus(status)
	if err != nil {
		// Unknown columns land in todo.
		st = model.StatusTodo
	}
	t.Status = st
	t.Priority = model.Priority(priority)
	if desc.Valid {
		v := desc.String
		t.Description = &v
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return model.Task{}, fmt.Errorf("task %s tags: %w", t.ID, err)
		}
	}
	if subJSON != "" {
		if err := json.Unmarshal([]byte(subJSON), &t.Subtasks); err != nil {
			return model.Task{}, fmt.Errorf("task %s subtasks: %w", t.ID, err)
		}
	}
	if len(t.Tags) == 0 {
		t.Tags = nil
	}
	if len(t.Subtasks) == 0 {
		t.Subtasks = nil
	}
	if periodJSON.Valid && periodJSON.String != "" {
		var p model.Periodicity
		if err := json.Unmarshal([]byte(periodJSON.String), &p); err != nil {
			return model.Task{}, fmt.Errorf("task %s periodicity: %w", t.ID, err)
		}
		t.Periodicity = &p
	}
	if estimate.Valid {
		n := int(estimate.Int64)
		t.EstimateMin = &n
	}
	if t.ScheduledStart, err = parseStoredTime(start); err != nil {
		return model.Task{}, fmt.Errorf("task %s scheduled_start: %w", t.ID, err)
	}
	if t.ScheduledEnd, err = parseStoredTime(end); err != nil {
		return model.Task{}, fmt.Errorf("task %s scheduled_end: %w", t.ID, err)
	}
	if due.Valid && due.String != "" {
		v := due.String
		t.DueDate = &v
	}
	t.CreatedAt = fromUnixMs(createdMs)
	t.UpdatedAt = fromUnixMs(updatedMs)
	if completedMs.Valid {
		c := fromUnixMs(completedMs.Int64)
		t.CompletedAt = &c
	}
	return t, nil
}

func parseStoredTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func storedTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func getTask(ctx context.Context, q dbtx, id string) (model.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, service.NotFound("task", id)
	}
	return t, err
}

// listTasks returns every task ordered the way kanban columns are shown.
func listTasks(ctx context.Context, q dbtx) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY status, order_index, created_at_unixms, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// putTask inserts or replaces the full row.
func putTask(ctx context.Context, q dbtx, t model.Task) error {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	subtasks := t.Subtasks
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	subJSON, err := json.Marshal(subtasks)
	if err != nil {
		return err
	}
	var periodJSON any
	if t.Periodicity != nil {
		b, err := json.Marshal(t.Periodicity)
		if err != nil {
			return err
		}
		periodJSON = string(b)
	}
	var desc, estimate, due, completed any
	if t.Description != nil {
		desc = *t.Description
	}
	if t.EstimateMin != nil {
		estimate = *t.EstimateMin
	}
	if t.DueDate != nil {
		due = *t.DueDate
	}
	if t.CompletedAt != nil {
		completed = unixMs(*t.CompletedAt)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			tags_json = excluded.tags_json,
			subtasks_json = excluded.subtasks_json,
			periodicity_json = excluded.periodicity_json,
			order_index = excluded.order_index,
			estimate_min = excluded.estimate_min,
			scheduled_start = excluded.scheduled_start,
			scheduled_end = excluded.scheduled_end,
			due_date = excluded.due_date,
			updated_at_unixms = excluded.updated_at_unixms,
			completed_at_unixms = excluded.completed_at_unixms`,
		t.ID, t.Title, desc, string(t.Status), string(t.Priority),
		string(tagsJSON), string(subJSON), periodJSON,
		t.OrderIndex, estimate,
		storedTime(t.ScheduledStart), storedTime(t.ScheduledEnd), due,
		unixMs(t.CreatedAt), unixMs(t.UpdatedAt), completed,
	)
	return err
}

// appendIndex is the order_index that places a task last in status's column.
func appendIndex(ctx context.Context, q dbtx, status model.Status) (int64, error) {
	var hi int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index), 0) FROM tasks WHERE status = ?`, string(status)).Scan(&hi)
	if err != nil {
		return 0, err
	}
	return hi + reorder.OrderStep, nil
}
