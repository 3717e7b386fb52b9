package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"planboard/internal/model"
	"planboard/internal/statusutil"
	"planboard/internal/timemath"

	"github.com/charmbracelet/lipgloss"
)

const (
	minColumnWidth = 18
	timelineWidth  = 34
	detailWidth    = 40
)

func (m boardModel) View() string {
	width := m.width
	if width <= 0 {
		width = 120
	}
	height := m.height
	if height <= 0 {
		height = 30
	}

	header := m.viewHeader(width)
	status := m.viewStatus(width)
	footer := m.help.View(m.keys)
	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(status) - lipgloss.Height(footer) - 1
	if bodyHeight < 5 {
		bodyHeight = 5
	}

	boardWidth := width
	var side []string
	if m.showTimeline {
		boardWidth -= timelineWidth + 1
		side = append(side, normalizePane(m.viewTimeline(timelineWidth), timelineWidth, bodyHeight))
	}
	if m.showDetail {
		boardWidth -= detailWidth + 1
		side = append(side, normalizePane(m.viewDetail(detailWidth), detailWidth, bodyHeight))
	}
	if boardWidth < minColumnWidth*len(model.Statuses) {
		boardWidth = minColumnWidth * len(model.Statuses)
	}

	panes := []string{normalizePane(m.viewBoard(boardWidth, bodyHeight), boardWidth, bodyHeight)}
	for _, p := range side {
		panes = append(panes, " ", p)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panes...)

	return strings.Join([]string{header, body, status, footer}, "\n")
}

func (m boardModel) viewHeader(width int) string {
	title := lipgloss.NewStyle().Bold(true).Render("Planboard")
	parts := []string{title, m.activeDate(), string(m.mode)}
	if d := m.st.TodayData; d != nil && d.CurrentDoing != nil {
		elapsed := ""
		if d.CurrentTimer != nil {
			elapsed = " " + formatElapsed(m.now.Sub(d.CurrentTimer.StartAt))
		}
		running := lipgloss.NewStyle().Foreground(colorDoingFg).Bold(true).
			Render("▶ " + d.CurrentDoing.Title + elapsed)
		parts = append(parts, running)
	}
	return fitLine(strings.Join(parts, "  "), width)
}

func (m boardModel) viewStatus(width int) string {
	switch {
	case m.confirm != nil:
		titles := make([]string, 0, len(m.confirm.conflicts))
		for _, t := range m.confirm.conflicts {
			titles = append(titles, t.Title)
		}
		return fitLine(fmt.Sprintf("%s overlaps %s. Schedule anyway? (y/n)",
			timemath.FormatClock(timemath.MinutesOfDay(m.confirm.start)), strings.Join(titles, ", ")), width)
	case m.scheduling != "":
		return fitLine(m.input.View(), width)
	case m.st.Notice != nil:
		n := m.st.Notice
		return fitLine(lipgloss.NewStyle().Foreground(colorErrorFg).Render(fmt.Sprintf("%s: %s", n.Code, n.Message)), width)
	case m.flash != "":
		return fitLine(lipgloss.NewStyle().Foreground(colorErrorFg).Render(m.flash), width)
	case m.grabbed != "":
		t, _ := m.task(m.grabbed)
		return fitLine(styleMuted().Render(fmt.Sprintf("Moving %q: pick a column or task, space to drop, esc to cancel", t.Title)), width)
	}
	return ""
}

func (m boardModel) viewBoard(width, height int) string {
	colWidth := width / len(model.Statuses)
	cols := make([]string, 0, len(model.Statuses))
	for i, s := range model.Statuses {
		cols = append(cols, normalizePane(m.viewColumn(i, s, colWidth-1), colWidth, height))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m boardModel) viewColumn(idx int, s model.Status, width int) string {
	tasks := m.column(s)
	heading := fmt.Sprintf("%s (%d)", statusutil.Label(s), len(tasks))
	hs := lipgloss.NewStyle().Bold(true).Foreground(colorMuted)
	if idx == m.col {
		hs = hs.Foreground(colorAccent)
		if m.grabbed != "" {
			heading = "» " + heading
		}
	}
	lines := []string{hs.Render(fitLine(heading, width))}

	for r, t := range tasks {
		lines = append(lines, m.viewCard(t, width, idx == m.col && r == m.row[s]))
	}
	if len(tasks) == 0 {
		lines = append(lines, styleMuted().Render("(empty)"))
	}
	return strings.Join(lines, "\n")
}

func (m boardModel) viewCard(t model.Task, width int, selected bool) string {
	border := colorCardBorder
	if selected {
		border = colorSelectedBorder
	}
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(max(width-2, 4))

	inner := max(width-4, 1)
	title := t.Title
	switch {
	case t.ID == m.grabbed:
		title = "✥ " + title
	case m.st.IsInFlight(t.ID):
		title += " …"
	}
	ts := lipgloss.NewStyle().Bold(true)
	if statusutil.IsEndState(t.Status) {
		ts = ts.Bold(false).Faint(true)
	}
	if selected {
		ts = ts.Foreground(colorSelectedFg).Background(colorSelectedBg)
	}
	meta := lipgloss.NewStyle().Foreground(colorCardMetaFg).Render(fitLine(cardMeta(t), inner))
	return card.Render(ts.Render(fitLine(title, inner)) + "\n" + meta)
}

func cardMeta(t model.Task) string {
	var parts []string
	if t.Priority != model.PriorityNone {
		parts = append(parts, strings.ToUpper(string(t.Priority)))
	}
	if t.ScheduledStart != nil {
		parts = append(parts, timemath.FormatClock(timemath.MinutesOfDay(t.ScheduledStart.Local())))
	}
	if t.EstimateMin != nil {
		parts = append(parts, fmt.Sprintf("%dm", *t.EstimateMin))
	}
	if t.DueDate != nil {
		parts = append(parts, "due "+*t.DueDate)
	}
	if t.Periodicity != nil {
		parts = append(parts, "↻ "+t.Periodicity.Strategy)
	}
	if len(t.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(t.Tags, " #"))
	}
	return strings.Join(parts, " · ")
}

func (m boardModel) viewTimeline(width int) string {
	tl, err := m.ps.Timeline(m.mode, time.Time{}, 1)
	if err != nil {
		return lipgloss.NewStyle().Foreground(colorErrorFg).Render(err.Error())
	}
	heading := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Timeline %s–%s", tl.RangeStart, tl.RangeEnd))
	lines := []string{fitLine(heading, width)}

	busy := lipgloss.NewStyle().Background(colorBusyBg).Foreground(colorSelectedFg)
	for _, lane := range tl.Lanes {
		if len(tl.Lanes) > 1 {
			lines = append(lines, styleMuted().Render(lane.Date))
		}
		type row struct {
			at   time.Time
			text string
		}
		var rows []row
		for _, b := range lane.Busy {
			title := b.ID
			if b.Task != nil {
				title = b.Task.Title
			}
			rows = append(rows, row{b.Start, busy.Render(fitLine(fmt.Sprintf("%s %3dm %s", clock(b.Start), b.DurationMinutes, title), width))})
		}
		for _, f := range lane.Free {
			rows = append(rows, row{f.Start, styleMuted().Render(fitLine(fmt.Sprintf("%s %3dm free", clock(f.Start), f.DurationMinutes), width))})
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })
		for _, r := range rows {
			lines = append(lines, r.text)
		}
	}
	return strings.Join(lines, "\n")
}

func (m boardModel) viewDetail(width int) string {
	t, ok := m.selected()
	if !ok {
		return styleMuted().Render("No task selected.")
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(t.Title),
		styleMuted().Render(statusutil.Label(t.Status) + " · " + t.ID),
	}
	if meta := cardMeta(t); meta != "" {
		lines = append(lines, meta)
	}
	if t.Description != nil {
		lines = append(lines, "", renderMarkdown(*t.Description, width))
	}
	for _, st := range t.Subtasks {
		box := "[ ]"
		if st.Completed {
			box = "[x]"
		}
		lines = append(lines, box+" "+st.Title)
	}
	return strings.Join(lines, "\n")
}

func clock(t time.Time) string {
	return timemath.FormatClock(timemath.MinutesOfDay(t.Local()))
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	mn := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mn, s)
	}
	return fmt.Sprintf("%02d:%02d", mn, s)
}
