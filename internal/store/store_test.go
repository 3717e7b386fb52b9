package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"planboard/internal/model"
	"planboard/internal/service"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T) (Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	return Store{Dir: t.TempDir(), Loc: time.UTC, Now: clock.Now}, clock
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int        { return &n }

func mustCreate(t *testing.T, s Store, in model.CreateTaskInput) model.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateTask(%q): %v", in.Title, err)
	}
	return task
}

func mustToday(t *testing.T, s Store, date string) *model.TodayDTO {
	t.Helper()
	d, err := s.ListToday(context.Background(), date)
	if err != nil {
		t.Fatalf("ListToday: %v", err)
	}
	return d
}

func wantCode(t *testing.T, err error, code service.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := service.CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

func ids(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestStore_CreateAndListToday(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, model.CreateTaskInput{Title: "write report", DueDate: strPtr("2026-03-02")})
	b := mustCreate(t, s, model.CreateTaskInput{Title: "review", DueDate: strPtr("2026-03-02"), Tags: []string{"work"}})
	v := mustCreate(t, s, model.CreateTaskInput{Title: "check deploy", Status: model.StatusVerify})

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.OrderIndex != 1000 || b.OrderIndex != 2000 {
		t.Fatalf("expected appended order indexes 1000/2000, got %d/%d", a.OrderIndex, b.OrderIndex)
	}

	d := mustToday(t, s, "2026-03-02")
	if got := ids(d.Kanban.Todo); len(got) != 2 || got[0] != a.ID || got[1] != b.ID {
		t.Fatalf("unexpected todo column: %v", got)
	}
	if got := ids(d.Kanban.Verify); len(got) != 1 || got[0] != v.ID {
		t.Fatalf("unexpected verify column: %v", got)
	}
	if len(d.Kanban.Doing) != 0 || len(d.Kanban.Done) != 0 || d.CurrentDoing != nil {
		t.Fatalf("expected empty doing/done and no current task: %+v", d)
	}
	if d.Kanban.Todo[1].Tags[0] != "work" {
		t.Fatalf("tags not persisted: %+v", d.Kanban.Todo[1])
	}

	_, err := s.CreateTask(ctx, model.CreateTaskInput{Title: "no due"})
	wantCode(t, err, service.CodeInvalidStateTransition)

	if _, err := s.CreateTask(ctx, model.CreateTaskInput{Title: ""}); err == nil {
		t.Fatalf("expected validation error for empty title")
	}
	if _, err := s.ListToday(ctx, "03/02/2026"); err == nil {
		t.Fatalf("expected invalid date error")
	}
}

func TestStore_StartStopTimers(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	a := mustCreate(t, s, model.CreateTaskInput{Title: "a", DueDate: strPtr("2026-03-02")})
	b := mustCreate(t, s, model.CreateTaskInput{Title: "b", Status: model.StatusVerify, DueDate: strPtr("2026-03-02")})
	c := mustCreate(t, s, model.CreateTaskInput{Title: "c", Status: model.StatusVerify})

	if err := s.StartTask(ctx, a.ID); err != nil {
		t.Fatalf("StartTask(a): %v", err)
	}
	wantCode(t, s.StartTask(ctx, a.ID), service.CodeInvalidStateTransition)
	wantCode(t, s.StartTask(ctx, c.ID), service.CodeInvalidStateTransition)

	d := mustToday(t, s, "2026-03-02")
	if d.CurrentDoing == nil || d.CurrentDoing.ID != a.ID || d.CurrentTimer == nil {
		t.Fatalf("expected a to be the current task, got %+v / %+v", d.CurrentDoing, d.CurrentTimer)
	}

	clock.t = clock.t.Add(90 * time.Second)
	if err := s.StartTask(ctx, b.ID); err != nil {
		t.Fatalf("StartTask(b): %v", err)
	}
	d = mustToday(t, s, "2026-03-02")
	if got := ids(d.Kanban.Doing); len(got) != 1 || got[0] != b.ID {
		t.Fatalf("expected only b doing, got %v", got)
	}
	if st, _, _ := d.Kanban.Find(a.ID); st != model.StatusTodo {
		t.Fatalf("expected a back in todo, got %s", st)
	}

	clock.t = clock.t.Add(time.Minute)
	if err := s.StopTask(ctx, b.ID); err != nil {
		t.Fatalf("StopTask(b): %v", err)
	}
	wantCode(t, s.StopTask(ctx, b.ID), service.CodeInvalidStateTransition)

	d = mustToday(t, s, "2026-03-02")
	if st, _, _ := d.Kanban.Find(b.ID); st != model.StatusVerify {
		t.Fatalf("expected b back in verify, got %s", st)
	}
	if d.CurrentDoing != nil || d.CurrentTimer != nil {
		t.Fatalf("expected no running timer")
	}

	log, err := s.TimerLog(ctx, a.ID)
	if err != nil {
		t.Fatalf("TimerLog: %v", err)
	}
	if len(log) != 1 || log[0].StopAt == nil || log[0].DurationSec != 90 {
		t.Fatalf("expected one closed 90s timer for a, got %+v", log)
	}
}

func TestStore_DoneReopenTransitions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, model.CreateTaskInput{Title: "a", DueDate: strPtr("2026-03-02")})

	wantCode(t, s.ReopenTask(ctx, a.ID), service.CodeInvalidStateTransition)
	if err := s.MarkDone(ctx, a.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	wantCode(t, s.MarkDone(ctx, a.ID), service.CodeInvalidStateTransition)
	wantCode(t, s.StartTask(ctx, a.ID), service.CodeInvalidStateTransition)

	got, err := s.GetTask(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != model.StatusDone || got.CompletedAt == nil {
		t.Fatalf("expected done with completed_at, got %+v", got)
	}

	if err := s.ReopenTask(ctx, a.ID); err != nil {
		t.Fatalf("ReopenTask: %v", err)
	}
	got, _ = s.GetTask(ctx, a.ID)
	if got.Status != model.StatusTodo || got.CompletedAt != nil {
		t.Fatalf("expected reopened todo without completed_at, got %+v", got)
	}

	if err := s.StartTask(ctx, a.ID); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	wantCode(t, s.MarkDone(ctx, a.ID), service.CodeInvalidStateTransition)

	wantCode(t, s.MarkDone(ctx, "missing"), service.CodeNotFound)
}

func TestStore_UpdateTaskRules(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, model.CreateTaskInput{Title: "a", DueDate: strPtr("2026-03-02")})

	wantCode(t, s.UpdateTask(ctx, model.UpdateTaskInput{ID: a.ID, ClearDueDate: true}), service.CodeInvalidStateTransition)

	doing := model.StatusDoing
	wantCode(t, s.UpdateTask(ctx, model.UpdateTaskInput{ID: a.ID, Status: &doing}), service.CodeInvalidStateTransition)

	done := model.StatusDone
	title := "a (final)"
	if err := s.UpdateTask(ctx, model.UpdateTaskInput{ID: a.ID, Status: &done, Title: &title}); err != nil {
		t.Fatalf("UpdateTask done: %v", err)
	}
	got, _ := s.GetTask(ctx, a.ID)
	if got.Title != title || got.CompletedAt == nil {
		t.Fatalf("expected renamed done task with completed_at, got %+v", got)
	}

	verify := model.StatusVerify
	if err := s.UpdateTask(ctx, model.UpdateTaskInput{ID: a.ID, Status: &verify, ClearDueDate: true}); err != nil {
		t.Fatalf("UpdateTask verify: %v", err)
	}
	got, _ = s.GetTask(ctx, a.ID)
	if got.CompletedAt != nil || got.DueDate != nil {
		t.Fatalf("expected completed_at and due date cleared, got %+v", got)
	}

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	if err := s.UpdateTask(ctx, model.UpdateTaskInput{ID: a.ID, ScheduledStart: &start, ScheduledEnd: &end, EstimateMin: intPtr(45)}); err != nil {
		t.Fatalf("UpdateTask schedule: %v", err)
	}
	got, _ = s.GetTask(ctx, a.ID)
	if got.ScheduledStart == nil || !got.ScheduledStart.Equal(start) || got.DurationMinutes() != 45 {
		t.Fatalf("schedule not persisted: %+v", got)
	}

	wantCode(t, s.UpdateTask(ctx, model.UpdateTaskInput{ID: "missing", Title: &title}), service.CodeNotFound)
}

func TestStore_ReorderTasks(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, model.CreateTaskInput{Title: "a", DueDate: strPtr("2026-03-02")})
	b := mustCreate(t, s, model.CreateTaskInput{Title: "b", DueDate: strPtr("2026-03-02")})
	c := mustCreate(t, s, model.CreateTaskInput{Title: "c", DueDate: strPtr("2026-03-02")})

	verify := model.StatusVerify
	err := s.ReorderTasks(ctx, []model.ReorderInput{
		{ID: c.ID, OrderIndex: 1000},
		{ID: a.ID, OrderIndex: 2000},
		{ID: b.ID, Status: &verify, OrderIndex: 1000},
	})
	if err != nil {
		t.Fatalf("ReorderTasks: %v", err)
	}
	d := mustToday(t, s, "2026-03-02")
	if got := ids(d.Kanban.Todo); len(got) != 2 || got[0] != c.ID || got[1] != a.ID {
		t.Fatalf("unexpected todo order: %v", got)
	}
	if got := ids(d.Kanban.Verify); len(got) != 1 || got[0] != b.ID {
		t.Fatalf("unexpected verify column: %v", got)
	}

	if err := s.StartTask(ctx, a.ID); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	todo := model.StatusTodo
	wantCode(t, s.ReorderTasks(ctx, []model.ReorderInput{{ID: a.ID, Status: &todo, OrderIndex: 1000}}), service.CodeInvalidStateTransition)

	wantCode(t, s.ReorderTasks(ctx, []model.ReorderInput{{ID: c.ID, OrderIndex: 5000}, {ID: "missing", OrderIndex: 1}}), service.CodeNotFound)
	d = mustToday(t, s, "2026-03-02")
	if d.Kanban.Todo[0].ID != c.ID || d.Kanban.Todo[0].OrderIndex != 1000 {
		t.Fatalf("failed batch must not be applied, got %+v", d.Kanban.Todo)
	}
}

func TestStore_DeleteTask(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a := mustCreate(t, s, model.CreateTaskInput{Title: "a", DueDate: strPtr("2026-03-02")})
	if err := s.StartTask(ctx, a.ID); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if err := s.DeleteTask(ctx, a.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	wantCode(t, s.DeleteTask(ctx, a.ID), service.CodeNotFound)

	d := mustToday(t, s, "2026-03-02")
	if d.Kanban.Len() != 0 || d.CurrentTimer != nil {
		t.Fatalf("expected empty board after delete, got %+v", d)
	}
}

func TestStore_TimelineIncludesRecurringInstances(t *testing.T) {
	s, _ := newTestStore(t)
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	nineThirty := nine.Add(30 * time.Minute)
	tomorrow := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	standupStart := time.Date(2026, 2, 23, 8, 30, 0, 0, time.UTC)
	standupEnd := standupStart.Add(15 * time.Minute)

	meeting := mustCreate(t, s, model.CreateTaskInput{Title: "meeting", DueDate: strPtr("2026-03-02"), ScheduledStart: &nine, ScheduledEnd: &nineThirty})
	mustCreate(t, s, model.CreateTaskInput{Title: "later", DueDate: strPtr("2026-03-03"), ScheduledStart: &tomorrow, EstimateMin: intPtr(30)})
	standup := mustCreate(t, s, model.CreateTaskInput{
		Title:          "standup",
		Status:         model.StatusVerify,
		ScheduledStart: &standupStart,
		ScheduledEnd:   &standupEnd,
		Periodicity:    &model.Periodicity{Strategy: "week", Interval: 1, StartDate: "2026-02-23", EndRule: "never"},
	})

	d := mustToday(t, s, "2026-03-02")
	if got := ids(d.Timeline); len(got) != 2 || got[0] != standup.ID || got[1] != meeting.ID {
		t.Fatalf("unexpected timeline: %v", got)
	}
	inst := d.Timeline[0]
	if !inst.ScheduledStart.Equal(time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)) || inst.DurationMinutes() != 15 {
		t.Fatalf("unexpected recurring instance: %+v", inst)
	}

	d = mustToday(t, s, "2026-03-04")
	if len(d.Timeline) != 0 {
		t.Fatalf("expected empty timeline on 2026-03-04, got %v", ids(d.Timeline))
	}
}

func TestStore_UIStateMerge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetUIState(ctx, "vault-1")
	if err != nil {
		t.Fatalf("GetUIState: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil state before first write, got %s", got)
	}

	if err := s.SetUIState(ctx, "vault-1", json.RawMessage(`{"board":{"collapsed":["done"]},"view":"board"}`)); err != nil {
		t.Fatalf("SetUIState: %v", err)
	}
	if err := s.SetUIState(ctx, "vault-1", json.RawMessage(`{"board":{"focus":"todo"},"view":"timeline"}`)); err != nil {
		t.Fatalf("SetUIState: %v", err)
	}
	if err := s.SetUIState(ctx, "vault-1", json.RawMessage(`[1,2]`)); err == nil {
		t.Fatalf("expected error for non-object partial")
	}

	got, err = s.GetUIState(ctx, "vault-1")
	if err != nil {
		t.Fatalf("GetUIState: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal(got, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	board, _ := st["board"].(map[string]any)
	if st["view"] != "timeline" || board["focus"] != "todo" || board["collapsed"] == nil {
		t.Fatalf("unexpected merged state: %s", got)
	}

	other, err := s.GetUIState(ctx, "vault-2")
	if err != nil || other != nil {
		t.Fatalf("expected vaults to be isolated, got %s (%v)", other, err)
	}
	if _, err := s.GetUIState(ctx, " "); err == nil {
		t.Fatalf("expected error for empty vault id")
	}
}

func TestStore_CorruptUIStateReadsAsMissing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	db, err := s.openSQLite(ctx)
	if err != nil {
		t.Fatalf("openSQLite: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO ui_state(vault_id, json, updated_at_unixms) VALUES('v', '{broken', 0)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = db.Close()

	got, err := s.GetUIState(ctx, "v")
	if err != nil || got != nil {
		t.Fatalf("expected missing state for corrupt row, got %s (%v)", got, err)
	}
	if err := s.SetUIState(ctx, "v", json.RawMessage(`{"view":"board"}`)); err != nil {
		t.Fatalf("SetUIState over corrupt row: %v", err)
	}
	got, _ = s.GetUIState(ctx, "v")
	if string(got) != `{"view":"board"}` {
		t.Fatalf("unexpected state: %s", got)
	}
}

func TestDiscoverDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DirName), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, ok := DiscoverDir(nested)
	if !ok || got != filepath.Join(root, DirName) {
		t.Fatalf("DiscoverDir = %q, %v", got, ok)
	}
}
