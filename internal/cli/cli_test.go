package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func runCLI(t *testing.T, args []string) ([]byte, []byte, error) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// mustRun runs the CLI against dir and decodes the {"data": ...} envelope.
func mustRun(t *testing.T, dir string, args ...string) map[string]any {
	t.Helper()
	out, stderr, err := runCLI(t, append([]string{"--dir", dir}, args...))
	if err != nil {
		t.Fatalf("%v: %v\nstderr:\n%s", args, err, string(stderr))
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("%v: decode output: %v\nstdout:\n%s", args, err, string(out))
	}
	if env.Data == nil {
		t.Fatalf("%v: missing data envelope:\n%s", args, string(out))
	}
	return env.Data
}

func mustFail(t *testing.T, dir string, args ...string) string {
	t.Helper()
	_, stderr, err := runCLI(t, append([]string{"--dir", dir}, args...))
	if err == nil {
		t.Fatalf("%v: expected error", args)
	}
	if !IsReported(err) {
		t.Fatalf("%v: error was not reported to stderr: %v", args, err)
	}
	return string(stderr)
}

func createTask(t *testing.T, dir string, args ...string) string {
	t.Helper()
	task := mustRun(t, dir, append([]string{"tasks", "create"}, args...)...)
	id, _ := task["id"].(string)
	if id == "" {
		t.Fatalf("created task has no id: %#v", task)
	}
	return id
}

func columnIDs(t *testing.T, today map[string]any, column string) []string {
	t.Helper()
	kanban, _ := today["kanban"].(map[string]any)
	tasks, _ := kanban[column].([]any)
	ids := make([]string, 0, len(tasks))
	for _, raw := range tasks {
		task, _ := raw.(map[string]any)
		id, _ := task["id"].(string)
		ids = append(ids, id)
	}
	return ids
}

func TestTasksCreate_AppearsOnToday(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	id := createTask(t, dir, "--title", "Write report", "--priority", "p1", "--tag", "work", "--estimate", "45")

	today := mustRun(t, dir, "today")
	if got := columnIDs(t, today, "todo"); len(got) != 1 || got[0] != id {
		t.Fatalf("todo column = %v, want [%s]", got, id)
	}

	task := mustRun(t, dir, "tasks", "show", id)
	if task["title"] != "Write report" || task["priority"] != "p1" {
		t.Fatalf("unexpected task: %#v", task)
	}
	if task["due_date"] != time.Now().Format("2006-01-02") {
		t.Fatalf("due_date = %v, want today", task["due_date"])
	}
}

func TestTasksCreate_RejectsDoing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	stderr := mustFail(t, dir, "tasks", "create", "--title", "x", "--status", "doing")
	if !strings.Contains(stderr, "InvalidStateTransition") {
		t.Fatalf("stderr = %q, want InvalidStateTransition", stderr)
	}
}

func TestTasksStartStop_TracksTimer(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	a := createTask(t, dir, "--title", "A")
	b := createTask(t, dir, "--title", "B", "--status", "verify", "--due", "2026-03-02")

	if got := mustRun(t, dir, "tasks", "start", a)["status"]; got != "doing" {
		t.Fatalf("start a: status = %v", got)
	}
	// Starting b stops a.
	if got := mustRun(t, dir, "tasks", "start", b)["status"]; got != "doing" {
		t.Fatalf("start b: status = %v", got)
	}
	today := mustRun(t, dir, "today")
	if got := columnIDs(t, today, "doing"); len(got) != 1 || got[0] != b {
		t.Fatalf("doing column = %v, want [%s]", got, b)
	}
	cur, _ := today["current_doing"].(map[string]any)
	if cur["id"] != b {
		t.Fatalf("current_doing = %#v, want %s", cur, b)
	}

	if got := mustRun(t, dir, "tasks", "stop", b)["status"]; got != "verify" {
		t.Fatalf("stop b: status = %v, want verify", got)
	}
	stderr := mustFail(t, dir, "tasks", "stop", b)
	if !strings.Contains(stderr, "InvalidStateTransition") {
		t.Fatalf("stop twice: stderr = %q", stderr)
	}

	out, _, err := runCLI(t, []string{"--dir", dir, "tasks", "show", a})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var env struct {
		Meta struct {
			Timers []map[string]any `json:"timers"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	if len(env.Meta.Timers) != 1 || env.Meta.Timers[0]["stop_at"] == nil {
		t.Fatalf("timers for a = %#v, want one closed timer", env.Meta.Timers)
	}
}

func TestTasksDoneReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	id := createTask(t, dir, "--title", "A")
	done := mustRun(t, dir, "tasks", "done", id)
	if done["status"] != "done" || done["completed_at"] == nil {
		t.Fatalf("done: %#v", done)
	}
	stderr := mustFail(t, dir, "tasks", "done", id)
	if !strings.Contains(stderr, "already done") {
		t.Fatalf("done twice: stderr = %q", stderr)
	}
	reopened := mustRun(t, dir, "tasks", "reopen", id)
	if reopened["status"] != "todo" || reopened["completed_at"] != nil {
		t.Fatalf("reopen: %#v", reopened)
	}
}

func TestTasksMove_ColumnAndBeforeTask(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	a := createTask(t, dir, "--title", "A")
	b := createTask(t, dir, "--title", "B")
	c := createTask(t, dir, "--title", "C", "--status", "verify")

	if got := mustRun(t, dir, "tasks", "move", a, "--to", "verify")["status"]; got != "verify" {
		t.Fatalf("move to verify: status = %v", got)
	}
	today := mustRun(t, dir, "today")
	if got := columnIDs(t, today, "verify"); len(got) != 2 || got[0] != c || got[1] != a {
		t.Fatalf("verify column = %v, want [%s %s]", got, c, a)
	}

	// Dropping on a task inserts before it.
	mustRun(t, dir, "tasks", "move", b, "--to", c)
	today = mustRun(t, dir, "today")
	if got := columnIDs(t, today, "verify"); len(got) != 3 || got[0] != b || got[1] != c || got[2] != a {
		t.Fatalf("verify column = %v, want [%s %s %s]", got, b, c, a)
	}
	if got := columnIDs(t, today, "todo"); len(got) != 0 {
		t.Fatalf("todo column = %v, want empty", got)
	}

	stderr := mustFail(t, dir, "tasks", "move", a, "--to", "doing")
	if !strings.Contains(stderr, "InvalidStateTransition") {
		t.Fatalf("move into doing: stderr = %q", stderr)
	}
}

func TestTasksSchedule_ConflictNeedsForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	day := "2026-03-02"

	a := createTask(t, dir, "--title", "A", "--estimate", "60")
	b := createTask(t, dir, "--title", "B", "--estimate", "30")

	scheduled := mustRun(t, dir, "tasks", "schedule", a, "--date", day, "--at", "10:00")
	start, err := time.Parse(time.RFC3339, scheduled["scheduled_start"].(string))
	if err != nil {
		t.Fatalf("parse scheduled_start: %v", err)
	}
	start = start.Local()
	if start.Format("2006-01-02 15:04") != day+" 10:00" {
		t.Fatalf("scheduled_start = %s, want %s 10:00", start, day)
	}

	slot := mustRun(t, dir, "slot", "check", "--date", day, "--start", "10:30", "--duration", "30")
	if slot["available"] != false {
		t.Fatalf("slot 10:30 should be taken: %#v", slot)
	}
	slot = mustRun(t, dir, "slot", "check", "--date", day, "--start", "10:30", "--duration", "30", "--exclude", a)
	if slot["available"] != true {
		t.Fatalf("slot 10:30 excluding a should be free: %#v", slot)
	}

	stderr := mustFail(t, dir, "tasks", "schedule", b, "--date", day, "--at", "10:30")
	if !strings.Contains(stderr, "Conflict") {
		t.Fatalf("overlapping schedule: stderr = %q", stderr)
	}
	if got := mustRun(t, dir, "tasks", "show", b)["scheduled_start"]; got != nil {
		t.Fatalf("declined drop left b scheduled at %v", got)
	}

	forced := mustRun(t, dir, "tasks", "schedule", b, "--date", day, "--at", "10:30", "--force")
	if forced["scheduled_start"] == nil {
		t.Fatalf("forced schedule: %#v", forced)
	}

	tl := mustRun(t, dir, "timeline", "--date", day)
	lanes, _ := tl["lanes"].([]any)
	if len(lanes) != 1 {
		t.Fatalf("lanes = %d, want 1", len(lanes))
	}
	lane, _ := lanes[0].(map[string]any)
	if busy, _ := lane["busy"].([]any); len(busy) != 2 {
		t.Fatalf("busy blocks = %d, want 2", len(busy))
	}
}

func TestTasksSchedule_OutsideTimeline(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	id := createTask(t, dir, "--title", "A", "--estimate", "30")
	stderr := mustFail(t, dir, "tasks", "schedule", id, "--date", "2026-03-02", "--at", "23:00")
	if !strings.Contains(stderr, "outside the timeline") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestTasksUpdate_OnlyChangedFlags(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	id := createTask(t, dir, "--title", "A", "--description", "keep me", "--tag", "x")
	updated := mustRun(t, dir, "tasks", "update", id, "--title", "A2", "--due", "2026-04-01")
	if updated["title"] != "A2" || updated["description"] != "keep me" || updated["due_date"] != "2026-04-01" {
		t.Fatalf("update: %#v", updated)
	}

	stderr := mustFail(t, dir, "tasks", "update", id, "--clear-due")
	if !strings.Contains(stderr, "due") {
		t.Fatalf("clearing a todo due date: stderr = %q", stderr)
	}
}

func TestTasksDelete_ThenShowIsNotFound(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	id := createTask(t, dir, "--title", "A")
	if got := mustRun(t, dir, "tasks", "delete", id)["deleted"]; got != true {
		t.Fatalf("delete: deleted = %v", got)
	}
	stderr := mustFail(t, dir, "tasks", "show", id)
	if !strings.Contains(stderr, "NotFound") {
		t.Fatalf("show deleted: stderr = %q", stderr)
	}
}

func TestUISetGet_MergesDottedKeys(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	mustRun(t, dir, "ui", "set", "timeline.mode=week", "sidebar=true")
	mustRun(t, dir, "ui", "set", "timeline.extent=2")

	got := mustRun(t, dir, "ui", "get")
	tl, _ := got["timeline"].(map[string]any)
	if tl["mode"] != "week" || tl["extent"] != float64(2) || got["sidebar"] != true {
		t.Fatalf("ui state = %#v", got)
	}

	if stderr := mustFail(t, dir, "ui", "set", "novalue"); !strings.Contains(stderr, "key=value") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestConfig_FileInStoreDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := "vaultId: work\ntimeline:\n  dayStart: \"08:00\"\n  dayEnd: \"18:00\"\n"
	if err := os.WriteFile(filepath.Join(dir, "planboard.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got := mustRun(t, dir, "config")
	if got["vaultId"] != "work" {
		t.Fatalf("config = %#v", got)
	}

	id := createTask(t, dir, "--title", "A", "--estimate", "30")
	stderr := mustFail(t, dir, "tasks", "schedule", id, "--date", "2026-03-02", "--at", "07:00")
	if !strings.Contains(stderr, "08:00-18:00") {
		t.Fatalf("stderr = %q, want configured range", stderr)
	}
}

func TestOutputFormats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	createTask(t, dir, "--title", "A")

	out, stderr, err := runCLI(t, []string{"--dir", dir, "--format", "yaml", "today"})
	if err != nil {
		t.Fatalf("yaml: %v\n%s", err, string(stderr))
	}
	if !strings.HasPrefix(string(out), "data:\n") {
		t.Fatalf("yaml output:\n%s", string(out))
	}

	out, _, err = runCLI(t, []string{"--dir", dir, "--format", "edn", "today"})
	if err != nil {
		t.Fatalf("edn: %v", err)
	}
	if !strings.HasPrefix(string(out), "{:data {") {
		t.Fatalf("edn output:\n%s", string(out))
	}

	_, stderr, err = runCLI(t, []string{"--dir", dir, "--format", "xml", "today"})
	if err == nil || !strings.Contains(string(stderr), "unknown format") {
		t.Fatalf("xml: err=%v stderr=%q", err, string(stderr))
	}
}

func TestToday_UnreadableStoreIsReported(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// A directory where the database file should be makes every open fail.
	if err := os.Mkdir(filepath.Join(dir, "planboard.sqlite"), 0o755); err != nil {
		t.Fatal(err)
	}

	stderr := mustFail(t, dir, "today", "--date", "2026-03-02")
	if strings.TrimSpace(stderr) == "" {
		t.Fatalf("expected an error message on stderr")
	}
	if strings.Contains(stderr, "close after failed load") {
		t.Fatalf("closing an unchanged store should not fail:\n%s", stderr)
	}
}
