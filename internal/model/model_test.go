package model

import (
	"strings"
	"testing"
	"time"
)

func intPtr(n int) *int { return &n }

func TestTaskEnd_ImplicitFromEstimate(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tk := Task{ScheduledStart: &start, EstimateMin: intPtr(45)}
	end, ok := tk.End()
	if !ok {
		t.Fatalf("expected implicit end")
	}
	if want := start.Add(45 * time.Minute); !end.Equal(want) {
		t.Fatalf("expected end %v, got %v", want, end)
	}
	if got := tk.DurationMinutes(); got != 45 {
		t.Fatalf("expected 45 minutes, got %d", got)
	}

	explicit := start.Add(2 * time.Hour)
	tk.ScheduledEnd = &explicit
	if got := tk.DurationMinutes(); got != 120 {
		t.Fatalf("explicit end should win; got %d", got)
	}

	if _, ok := (Task{EstimateMin: intPtr(30)}).End(); ok {
		t.Fatalf("unscheduled task must not have an end")
	}
}

func TestTaskClone_IsDeep(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	due := "2026-03-02"
	orig := Task{
		ID:             "a",
		Tags:           []string{"x"},
		Subtasks:       []Subtask{{ID: "s1", Title: "one"}},
		ScheduledStart: &start,
		DueDate:        &due,
		EstimateMin:    intPtr(10),
	}
	c := orig.Clone()
	c.Tags[0] = "y"
	c.Subtasks[0].Completed = true
	*c.ScheduledStart = start.Add(time.Hour)
	*c.DueDate = "2026-03-03"
	*c.EstimateMin = 99

	if orig.Tags[0] != "x" || orig.Subtasks[0].Completed || !orig.ScheduledStart.Equal(start) || *orig.DueDate != due || *orig.EstimateMin != 10 {
		t.Fatalf("clone shares memory with original: %+v", orig)
	}
}

func TestUpdateTaskInput_Apply(t *testing.T) {
	due := "2026-03-02"
	tk := Task{ID: "a", Title: "old", Status: StatusTodo, DueDate: &due}
	title := "new"
	verify := StatusVerify
	UpdateTaskInput{ID: "a", Title: &title, Status: &verify, ClearDueDate: true}.Apply(&tk)
	if tk.Title != "new" || tk.Status != StatusVerify || tk.DueDate != nil {
		t.Fatalf("unexpected merge result: %+v", tk)
	}
}

func TestKanbanFind(t *testing.T) {
	k := Kanban{
		Todo:  []Task{{ID: "a"}, {ID: "b"}},
		Doing: []Task{{ID: "c"}},
	}
	s, i, ok := k.Find("b")
	if !ok || s != StatusTodo || i != 1 {
		t.Fatalf("Find(b) = %q,%d,%v", s, i, ok)
	}
	if _, _, ok := k.Find("zzz"); ok {
		t.Fatalf("expected missing task")
	}
	if k.Len() != 3 {
		t.Fatalf("expected 3 tasks, got %d", k.Len())
	}
}

func TestValidate_CreateTaskInput(t *testing.T) {
	bad := "03/02/2026"
	err := Validate(CreateTaskInput{Title: "", DueDate: &bad, EstimateMin: intPtr(0)})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, field := range []string{"Title", "DueDate", "EstimateMin"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected %s in error, got %v", field, err)
		}
	}

	good := "2026-03-02"
	if err := Validate(CreateTaskInput{Title: "write report", Status: StatusTodo, DueDate: &good}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
