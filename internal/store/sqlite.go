package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"planboard/internal/service"
)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.sqlitePath())
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout avoids "database is locked" between
	// the TUI and a concurrent CLI invocation.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			subtasks_json TEXT NOT NULL DEFAULT '[]',
			periodicity_json TEXT,
			order_index INTEGER NOT NULL DEFAULT 0,
			estimate_min INTEGER,
			scheduled_start TEXT,
			scheduled_end TEXT,
			due_date TEXT,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			completed_at_unixms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_order ON tasks(status, order_index);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_schedule ON tasks(scheduled_start);`,
		`CREATE TABLE IF NOT EXISTS timers (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			start_at_unixms INTEGER NOT NULL,
			stop_at_unixms INTEGER,
			duration_sec INTEGER NOT NULL DEFAULT 0,
			resume_status TEXT NOT NULL DEFAULT 'todo'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_timers_task ON timers(task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_timers_open ON timers(stop_at_unixms);`,
		`CREATE TABLE IF NOT EXISTS ui_state (
			vault_id TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO meta(k, v) VALUES('schema_version', '1')`); err != nil {
		return err
	}
	return nil
}

// withTx runs fn in one transaction and logs the operation. Errors that are not already
// service errors are wrapped with op.
func (s Store) withTx(ctx context.Context, op, taskID string, fn func(tx *sql.Tx) error) (err error) {
	started := time.Now()
	defer func() { s.logOp(op, taskID, started, err) }()

	db, err := s.openSQLite(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		var se *service.Error
		if errors.As(err, &se) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s Store) logOp(op, taskID string, started time.Time, err error) {
	attrs := []any{"op", op, "elapsed_ms", time.Since(started).Milliseconds()}
	if taskID != "" {
		attrs = append(attrs, "task_id", taskID)
	}
	if err != nil {
		attrs = append(attrs, "code", string(service.CodeOf(err)), "err", err)
		s.logger().Warn("store operation failed", attrs...)
		return
	}
	s.logger().Debug("store operation", attrs...)
}

func unixMs(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromUnixMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
