package model

import (
	"time"
)

type Status string

const (
	StatusTodo   Status = "todo"
	StatusDoing  Status = "doing"
	StatusVerify Status = "verify"
	StatusDone   Status = "done"
)

// Statuses lists the kanban columns in display order.
var Statuses = []Status{StatusTodo, StatusDoing, StatusVerify, StatusDone}

type Priority string

const (
	PriorityNone Priority = ""
	PriorityP0   Priority = "p0"
	PriorityP1   Priority = "p1"
	PriorityP2   Priority = "p2"
	PriorityP3   Priority = "p3"
)

type Subtask struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Completed bool   `json:"completed"`
}

// Periodicity is a recurrence rule. StartDate is YYYY-MM-DD or an RFC 3339 timestamp;
// when it carries a time of day, recurring instances start at that time.
type Periodicity struct {
	Strategy  string  `json:"strategy" validate:"required,oneof=day week month year"`
	Interval  int     `json:"interval" validate:"min=1"`
	StartDate string  `json:"start_date" validate:"required"`
	EndRule   string  `json:"end_rule" validate:"required,oneof=never date count"`
	EndDate   *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndCount  *int    `json:"end_count,omitempty" validate:"omitempty,min=1"`
}

type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Subtasks    []Subtask    `json:"subtasks,omitempty"`
	Periodicity *Periodicity `json:"periodicity,omitempty"`
	OrderIndex  int64        `json:"order_index"`
	EstimateMin *int         `json:"estimate_min,omitempty"`

	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`

	// DueDate is YYYY-MM-DD.
	DueDate *string `json:"due_date,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// End returns the task's scheduled end. A task with a start but no explicit end ends
// estimate_min minutes after its start. ok is false when no end can be derived.
func (t Task) End() (end time.Time, ok bool) {
	if t.ScheduledStart == nil {
		return time.Time{}, false
	}
	if t.ScheduledEnd != nil {
		return *t.ScheduledEnd, true
	}
	if t.EstimateMin != nil && *t.EstimateMin > 0 {
		return t.ScheduledStart.Add(time.Duration(*t.EstimateMin) * time.Minute), true
	}
	return time.Time{}, false
}

// DurationMinutes is the scheduled duration (explicit or implicit), or 0.
func (t Task) DurationMinutes() int {
	end, ok := t.End()
	if !ok {
		return 0
	}
	d := int(end.Sub(*t.ScheduledStart) / time.Minute)
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	out := t
	if t.Description != nil {
		s := *t.Description
		out.Description = &s
	}
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.Subtasks != nil {
		out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	if t.Periodicity != nil {
		p := *t.Periodicity
		if p.EndDate != nil {
			s := *p.EndDate
			p.EndDate = &s
		}
		if p.EndCount != nil {
			n := *p.EndCount
			p.EndCount = &n
		}
		out.Periodicity = &p
	}
	if t.EstimateMin != nil {
		n := *t.EstimateMin
		out.EstimateMin = &n
	}
	out.ScheduledStart = cloneTime(t.ScheduledStart)
	out.ScheduledEnd = cloneTime(t.ScheduledEnd)
	out.CompletedAt = cloneTime(t.CompletedAt)
	if t.DueDate != nil {
		s := *t.DueDate
		out.DueDate = &s
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func CloneTasks(ts []Task) []Task {
	if ts == nil {
		return nil
	}
	out := make([]Task, len(ts))
	for i := range ts {
		out[i] = ts[i].Clone()
	}
	return out
}

type Timer struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	StartAt     time.Time  `json:"start_at"`
	StopAt      *time.Time `json:"stop_at,omitempty"`
	DurationSec int64      `json:"duration_sec"`
}

type Kanban struct {
	Todo   []Task `json:"todo"`
	Doing  []Task `json:"doing"`
	Verify []Task `json:"verify"`
	Done   []Task `json:"done"`
}

// Column returns the tasks of one status column (nil for unknown statuses).
func (k *Kanban) Column(s Status) []Task {
	switch s {
	case StatusTodo:
		return k.Todo
	case StatusDoing:
		return k.Doing
	case StatusVerify:
		return k.Verify
	case StatusDone:
		return k.Done
	}
	return nil
}

func (k *Kanban) SetColumn(s Status, tasks []Task) {
	switch s {
	case StatusTodo:
		k.Todo = tasks
	case StatusDoing:
		k.Doing = tasks
	case StatusVerify:
		k.Verify = tasks
	case StatusDone:
		k.Done = tasks
	}
}

// Find locates a task by id across all columns.
func (k *Kanban) Find(id string) (Status, int, bool) {
	for _, s := range Statuses {
		for i, t := range k.Column(s) {
			if t.ID == id {
				return s, i, true
			}
		}
	}
	return "", -1, false
}

func (k *Kanban) Len() int {
	return len(k.Todo) + len(k.Doing) + len(k.Verify) + len(k.Done)
}

func (k Kanban) Clone() Kanban {
	return Kanban{
		Todo:   CloneTasks(k.Todo),
		Doing:  CloneTasks(k.Doing),
		Verify: CloneTasks(k.Verify),
		Done:   CloneTasks(k.Done),
	}
}

// TodayDTO is the service's snapshot of one day: the board plus the day's timeline.
type TodayDTO struct {
	Today        string    `json:"today"`
	Kanban       Kanban    `json:"kanban"`
	Timeline     []Task    `json:"timeline"`
	CurrentDoing *Task     `json:"current_doing,omitempty"`
	CurrentTimer *Timer    `json:"current_timer,omitempty"`
	ServerNow    time.Time `json:"server_now"`
}

func (d *TodayDTO) Clone() *TodayDTO {
	if d == nil {
		return nil
	}
	out := &TodayDTO{
		Today:     d.Today,
		Kanban:    d.Kanban.Clone(),
		Timeline:  CloneTasks(d.Timeline),
		ServerNow: d.ServerNow,
	}
	if d.CurrentDoing != nil {
		t := d.CurrentDoing.Clone()
		out.CurrentDoing = &t
	}
	if d.CurrentTimer != nil {
		tm := *d.CurrentTimer
		tm.StopAt = cloneTime(d.CurrentTimer.StopAt)
		out.CurrentTimer = &tm
	}
	return out
}

type CreateTaskInput struct {
	Title          string       `json:"title" validate:"required,max=500"`
	Description    *string      `json:"description,omitempty"`
	Status         Status       `json:"status" validate:"omitempty,oneof=todo doing verify done"`
	Priority       Priority     `json:"priority,omitempty" validate:"omitempty,oneof=p0 p1 p2 p3"`
	Tags           []string     `json:"tags,omitempty" validate:"dive,required"`
	Subtasks       []Subtask    `json:"subtasks,omitempty" validate:"dive"`
	Periodicity    *Periodicity `json:"periodicity,omitempty" validate:"omitempty"`
	DueDate        *string      `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EstimateMin    *int         `json:"estimate_min,omitempty" validate:"omitempty,gt=0"`
	ScheduledStart *time.Time   `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time   `json:"scheduled_end,omitempty"`
}

// UpdateTaskInput is a partial update: nil fields are left unchanged.
type UpdateTaskInput struct {
	ID             string       `json:"id" validate:"required"`
	Title          *string      `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Description    *string      `json:"description,omitempty"`
	Status         *Status      `json:"status,omitempty" validate:"omitempty,oneof=todo doing verify done"`
	Priority       *Priority    `json:"priority,omitempty" validate:"omitempty,oneof=p0 p1 p2 p3"`
	Tags           []string     `json:"tags,omitempty" validate:"dive,required"`
	Subtasks       []Subtask    `json:"subtasks,omitempty" validate:"dive"`
	Periodicity    *Periodicity `json:"periodicity,omitempty" validate:"omitempty"`
	OrderIndex     *int64       `json:"order_index,omitempty"`
	EstimateMin    *int         `json:"estimate_min,omitempty" validate:"omitempty,gt=0"`
	ScheduledStart *time.Time   `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time   `json:"scheduled_end,omitempty"`
	DueDate        *string      `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	ClearDueDate  bool `json:"clear_due_date,omitempty"`
	ClearSchedule bool `json:"clear_schedule,omitempty"`
}

// Apply merges the provided fields into t.
func (in UpdateTaskInput) Apply(t *Task) {
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		s := *in.Description
		t.Description = &s
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Tags != nil {
		t.Tags = append([]string(nil), in.Tags...)
	}
	if in.Subtasks != nil {
		t.Subtasks = append([]Subtask(nil), in.Subtasks...)
	}
	if in.Periodicity != nil {
		p := Task{Periodicity: in.Periodicity}.Clone().Periodicity
		t.Periodicity = p
	}
	if in.OrderIndex != nil {
		t.OrderIndex = *in.OrderIndex
	}
	if in.EstimateMin != nil {
		n := *in.EstimateMin
		t.EstimateMin = &n
	}
	if in.ClearSchedule {
		t.ScheduledStart = nil
		t.ScheduledEnd = nil
	}
	if in.ScheduledStart != nil {
		t.ScheduledStart = cloneTime(in.ScheduledStart)
	}
	if in.ScheduledEnd != nil {
		t.ScheduledEnd = cloneTime(in.ScheduledEnd)
	}
	if in.ClearDueDate {
		t.DueDate = nil
	}
	if in.DueDate != nil {
		s := *in.DueDate
		t.DueDate = &s
	}
}

// ReorderInput is one positional update in a batch reorder. Status is set only when the
// task changes column.
type ReorderInput struct {
	ID         string  `json:"id" validate:"required"`
	Status     *Status `json:"status,omitempty" validate:"omitempty,oneof=todo doing verify done"`
	OrderIndex int64   `json:"order_index"`
}
