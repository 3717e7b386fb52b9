package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"planboard/internal/model"
	"planboard/internal/statusutil"
)

type openTimer struct {
	timer  model.Timer
	resume model.Status
}

// openTimers lists timers without a stop time, oldest first.
func openTimers(ctx context.Context, q dbtx) ([]openTimer, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, task_id, start_at_unixms, resume_status
		FROM timers WHERE stop_at_unixms IS NULL ORDER BY start_at_unixms, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []openTimer
	for rows.Next() {
		var (
			ot      openTimer
			startMs int64
			resume  string
		)
		if err := rows.Scan(&ot.timer.ID, &ot.timer.TaskID, &startMs, &resume); err != nil {
			return nil, err
		}
		ot.timer.StartAt = fromUnixMs(startMs)
		ot.resume = resumeStatus(resume)
		out = append(out, ot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func resumeStatus(s string) model.Status {
	st, err := statusutil.NormalizeStatus(s)
	if err != nil || st == model.StatusDoing {
		return model.StatusTodo
	}
	return st
}

// closeTimer stamps the stop time and duration of an open timer.
func closeTimer(ctx context.Context, q dbtx, t model.Timer, now time.Time) error {
	dur := int64(now.Sub(t.StartAt) / time.Second)
	if dur < 0 {
		dur = 0
	}
	_, err := q.ExecContext(ctx, `UPDATE timers SET stop_at_unixms = ?, duration_sec = ? WHERE id = ?`,
		unixMs(now), dur, t.ID)
	return err
}

func insertTimer(ctx context.Context, q dbtx, taskID string, resume model.Status, now time.Time) (model.Timer, error) {
	t := model.Timer{ID: uuid.NewString(), TaskID: taskID, StartAt: now.UTC()}
	_, err := q.ExecContext(ctx, `INSERT INTO timers(id, task_id, start_at_unixms, duration_sec, resume_status) VALUES(?, ?, ?, 0, ?)`,
		t.ID, t.TaskID, unixMs(now), string(resume))
	return t, err
}

// stopTask closes the task's open timer and returns the task to the status it had before it
// was started. Tasks without an open timer go back to todo.
func stopTask(ctx context.Context, q dbtx, taskID string, now time.Time) error {
	timers, err := openTimers(ctx, q)
	if err != nil {
		return err
	}
	resume := model.StatusTodo
	for _, ot := range timers {
		if ot.timer.TaskID != taskID {
			continue
		}
		if err := closeTimer(ctx, q, ot.timer, now); err != nil {
			return err
		}
		resume = ot.resume
	}
	t, err := getTask(ctx, q, taskID)
	if err != nil {
		return err
	}
	t.Status = resume
	t.UpdatedAt = now
	if t.OrderIndex, err = appendIndex(ctx, q, resume); err != nil {
		return err
	}
	return putTask(ctx, q, t)
}

// currentTimer returns the most recently started open timer.
func currentTimer(ctx context.Context, q dbtx) (*model.Timer, error) {
	var (
		t       model.Timer
		startMs int64
	)
	err := q.QueryRowContext(ctx, `SELECT id, task_id, start_at_unixms FROM timers
		WHERE stop_at_unixms IS NULL ORDER BY start_at_unixms DESC, id DESC LIMIT 1`).Scan(&t.ID, &t.TaskID, &startMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.StartAt = fromUnixMs(startMs)
	return &t, nil
}
