package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"planboard/internal/model"
	"planboard/internal/planning"
	"planboard/internal/reorder"
	"planboard/internal/timeline"
	"planboard/internal/timemath"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// uiKey is the UI state key the board's preferences live under.
const uiKey = "board"

type (
	stateChangedMsg struct{}
	tickMsg         time.Time
	opDoneMsg       struct {
		op  string
		err error
	}
)

// pendingSchedule is a timeline placement waiting for the user to accept its overlaps.
type pendingSchedule struct {
	taskID    string
	start     time.Time
	conflicts []model.Task
}

type boardModel struct {
	ctx  context.Context
	ps   *planning.Store
	date string

	keys  keyMap
	help  help.Model
	input textinput.Model

	st planning.State

	col int
	row map[model.Status]int

	// grabbed is the task being carried by the keyboard drag, "" when none.
	grabbed     string
	grabbedFrom model.Status

	showTimeline bool
	showDetail   bool
	mode         timeline.Mode
	prefsLoaded  bool

	scheduling string // task id while the time prompt is open
	confirm    *pendingSchedule

	// flash is the last error that did not come with a store notice.
	flash string

	width, height int
	now           time.Time
}

func newModel(ctx context.Context, ps *planning.Store, opts Options) boardModel {
	in := textinput.New()
	in.Placeholder = "HH:MM"
	in.CharLimit = 25
	in.Prompt = "Schedule at: "

	return boardModel{
		ctx:          ctx,
		ps:           ps,
		date:         opts.Date,
		keys:         defaultKeyMap(),
		help:         help.New(),
		input:        in,
		st:           ps.State(),
		row:          map[model.Status]int{},
		showTimeline: true,
		mode:         timeline.ModeDay,
		now:          time.Now(),
	}
}

func (m boardModel) Init() tea.Cmd {
	ps, date := m.ps, m.date
	return tea.Batch(
		m.run("load", func(ctx context.Context) error {
			if err := ps.LoadUIState(ctx); err != nil {
				return err
			}
			return ps.LoadToday(ctx, date)
		}),
		tick(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// run executes a store operation off the update loop.
func (m boardModel) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case stateChangedMsg:
		m.refresh()
		return m, nil

	case opDoneMsg:
		m.refresh()
		m.flash = ""
		if msg.err != nil && m.st.Notice == nil {
			m.flash = msg.err.Error()
		}
		if msg.op == "load" && !m.prefsLoaded {
			m.prefsLoaded = true
			m.applyPrefs()
		}
		return m, nil

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}
		if m.scheduling != "" {
			return m.updatePrompt(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m *boardModel) refresh() {
	m.st = m.ps.State()
	m.clampRows()
	if m.grabbed != "" {
		if _, ok := m.task(m.grabbed); !ok {
			m.grabbed = ""
		}
	}
}

func (m boardModel) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, k.Left):
		m.moveColumn(-1)
	case key.Matches(msg, k.Right):
		m.moveColumn(1)
	case key.Matches(msg, k.Up):
		m.moveRow(-1)
	case key.Matches(msg, k.Down):
		m.moveRow(1)
	case key.Matches(msg, k.Cancel):
		if m.grabbed != "" {
			m.grabbed = ""
			return m, nil
		}
		m.flash = ""
		if m.st.Notice != nil {
			ps := m.ps
			return m, m.run("clear_notice", func(context.Context) error {
				ps.ClearNotice()
				return nil
			})
		}
	case key.Matches(msg, k.Grab):
		return m.grabOrDrop()
	case key.Matches(msg, k.Timer):
		return m.toggleTimer()
	case key.Matches(msg, k.Done):
		return m.onSelected("mark_done", m.ps.MarkDone)
	case key.Matches(msg, k.Reopen):
		return m.onSelected("reopen_task", m.ps.ReopenTask)
	case key.Matches(msg, k.Schedule):
		if t, ok := m.selected(); ok {
			m.scheduling = t.ID
			m.input.SetValue("")
			return m, m.input.Focus()
		}
	case key.Matches(msg, k.Timeline):
		m.showTimeline = !m.showTimeline
		return m, m.savePrefs()
	case key.Matches(msg, k.Week):
		if m.mode == timeline.ModeWeek {
			m.mode = timeline.ModeDay
		} else {
			m.mode = timeline.ModeWeek
		}
		return m, m.savePrefs()
	case key.Matches(msg, k.Detail):
		m.showDetail = !m.showDetail
		return m, m.savePrefs()
	case key.Matches(msg, k.PrevDay):
		return m, m.shiftDay(-1)
	case key.Matches(msg, k.NextDay):
		return m, m.shiftDay(1)
	case key.Matches(msg, k.Reload):
		ps := m.ps
		return m, m.run("load_today", func(ctx context.Context) error { return ps.Reload(ctx) })
	}
	return m, nil
}

func (m boardModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.scheduling = ""
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		id := m.scheduling
		m.scheduling = ""
		m.input.Blur()
		start, err := m.parseStart(m.input.Value())
		if err != nil {
			return m, m.run("schedule_task", func(context.Context) error { return err })
		}
		t, ok := m.task(id)
		if !ok {
			return m, nil
		}
		dur := t.DurationMinutes()
		if dur == 0 && t.EstimateMin != nil {
			dur = *t.EstimateMin
		}
		if dur > 0 {
			if conflicts := m.ps.SlotConflicts(start, dur, id); len(conflicts) > 0 {
				m.confirm = &pendingSchedule{taskID: id, start: start, conflicts: conflicts}
				return m, nil
			}
		}
		return m, m.dropOnTimeline(id, start, false)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m boardModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.confirm
	switch strings.ToLower(msg.String()) {
	case "y", "enter":
		m.confirm = nil
		return m, m.dropOnTimeline(p.taskID, p.start, true)
	case "n", "esc", "q":
		m.confirm = nil
	}
	return m, nil
}

// parseStart reads HH:MM on the board's day, or a full timestamp.
func (m boardModel) parseStart(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if mins, err := timemath.ParseClock(s); err == nil {
		day, err := timemath.ParseDate(m.activeDate(), time.Local)
		if err != nil {
			return time.Time{}, err
		}
		return timemath.AtMinute(day, mins), nil
	}
	t, err := timemath.ParseTimestamp(s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (expected HH:MM)", s)
	}
	return t.In(time.Local), nil
}

// dropOnTimeline places the task through the same gesture path a pointer drop takes.
func (m boardModel) dropOnTimeline(id string, start time.Time, accepted bool) tea.Cmd {
	ps := m.ps
	cfg := ps.TimelineConfig()
	startMin, endMin, err := cfg.Validate()
	if err != nil {
		return m.run("drop_task", func(context.Context) error { return err })
	}
	mins := timemath.MinutesOfDay(start)
	if mins < startMin || mins > endMin {
		// Outside the visible track there is no slot to drop on.
		return m.run("schedule_task", func(ctx context.Context) error { return ps.ScheduleTask(ctx, id, start) })
	}
	f, err := timeline.FractionOf(cfg, start)
	if err != nil {
		return m.run("drop_task", func(context.Context) error { return err })
	}
	target := reorder.SlotTarget(reorder.Slot{Fraction: f})
	g := reorder.Gesture{DraggedTaskID: id, DropTarget: &target}
	opts := planning.DropOptions{
		Mode: timeline.ModeDay,
		Ref:  timemath.StartOfDay(start),
		Confirmer: planning.ConfirmFunc(func(context.Context, []model.Task) bool {
			return accepted
		}),
	}
	return m.run("drop_task", func(ctx context.Context) error { return ps.DropTask(ctx, g, opts) })
}

func (m boardModel) grabOrDrop() (tea.Model, tea.Cmd) {
	if m.grabbed == "" {
		if t, ok := m.selected(); ok {
			m.grabbed = t.ID
			m.grabbedFrom = t.Status
		}
		return m, nil
	}

	id, from := m.grabbed, m.grabbedFrom
	m.grabbed = ""
	col := model.Statuses[m.col]

	var target reorder.Target
	if t, ok := m.selected(); ok && t.ID != id {
		target = reorder.TaskTarget(t.ID)
	} else {
		target = reorder.ColumnTarget(col)
	}
	g := reorder.Gesture{DraggedTaskID: id, SourceColumn: from, DropTarget: &target}
	ps := m.ps
	return m, m.run("drop_task", func(ctx context.Context) error {
		return ps.DropTask(ctx, g, planning.DropOptions{})
	})
}

func (m boardModel) toggleTimer() (tea.Model, tea.Cmd) {
	t, ok := m.selected()
	if !ok {
		return m, nil
	}
	if t.Status == model.StatusDoing {
		return m.onSelected("stop_task", m.ps.StopTask)
	}
	if t.DueDate == nil {
		due := m.activeDate()
		ps := m.ps
		return m, m.run("start_task", func(ctx context.Context) error {
			return ps.StartTaskWithDueDate(ctx, t.ID, due)
		})
	}
	return m.onSelected("start_task", m.ps.StartTask)
}

func (m boardModel) onSelected(op string, fn func(ctx context.Context, id string) error) (tea.Model, tea.Cmd) {
	t, ok := m.selected()
	if !ok {
		return m, nil
	}
	id := t.ID
	return m, m.run(op, func(ctx context.Context) error { return fn(ctx, id) })
}

func (m boardModel) shiftDay(delta int) tea.Cmd {
	day, err := timemath.ParseDate(m.activeDate(), time.Local)
	if err != nil {
		day = timemath.StartOfDay(time.Now())
	}
	next := timemath.FormatDate(day.AddDate(0, 0, delta))
	ps := m.ps
	return m.run("load_today", func(ctx context.Context) error { return ps.LoadToday(ctx, next) })
}

func (m boardModel) activeDate() string {
	if m.st.TodayData != nil && m.st.TodayData.Today != "" {
		return m.st.TodayData.Today
	}
	return m.ps.ActiveDate()
}

func (m *boardModel) moveColumn(delta int) {
	m.col = (m.col + delta + len(model.Statuses)) % len(model.Statuses)
	m.clampRows()
}

func (m *boardModel) moveRow(delta int) {
	s := model.Statuses[m.col]
	m.row[s] += delta
	m.clampRows()
}

func (m *boardModel) clampRows() {
	for _, s := range model.Statuses {
		n := len(m.column(s))
		r := m.row[s]
		if r >= n {
			r = n - 1
		}
		if r < 0 {
			r = 0
		}
		m.row[s] = r
	}
}

func (m boardModel) column(s model.Status) []model.Task {
	if m.st.TodayData == nil {
		return nil
	}
	return m.st.TodayData.Kanban.Column(s)
}

func (m boardModel) selected() (model.Task, bool) {
	s := model.Statuses[m.col]
	tasks := m.column(s)
	r := m.row[s]
	if r < 0 || r >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[r], true
}

func (m boardModel) task(id string) (model.Task, bool) {
	return m.ps.Task(id)
}

// applyPrefs restores the board layout saved in UI state.
func (m *boardModel) applyPrefs() {
	prefs, ok := m.st.UIState[uiKey].(map[string]any)
	if !ok {
		return
	}
	if v, ok := prefs["timeline"].(bool); ok {
		m.showTimeline = v
	}
	if v, ok := prefs["detail"].(bool); ok {
		m.showDetail = v
	}
	if v, ok := prefs["mode"].(string); ok {
		if mode, err := timeline.ParseMode(v); err == nil {
			m.mode = mode
		}
	}
}

func (m boardModel) savePrefs() tea.Cmd {
	partial := model.UIState{uiKey: map[string]any{
		"timeline": m.showTimeline,
		"detail":   m.showDetail,
		"mode":     string(m.mode),
	}}
	ps := m.ps
	return m.run("set_ui_state", func(context.Context) error {
		ps.SetUIState(partial)
		return nil
	})
}
