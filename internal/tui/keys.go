package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	Grab     key.Binding
	Cancel   key.Binding
	Timer    key.Binding
	Done     key.Binding
	Reopen   key.Binding
	Schedule key.Binding
	Timeline key.Binding
	Week     key.Binding
	Detail   key.Binding
	PrevDay  key.Binding
	NextDay  key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Grab:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "grab/drop")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Timer:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start/stop")),
		Done:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "done")),
		Reopen:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "reopen")),
		Schedule: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "schedule")),
		Timeline: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "timeline")),
		Week:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "day/week")),
		Detail:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		PrevDay:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev day")),
		NextDay:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next day")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Grab, k.Timer, k.Done, k.Schedule, k.Timeline, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Grab, k.Cancel, k.Detail},
		{k.Timer, k.Done, k.Reopen, k.Schedule},
		{k.Timeline, k.Week, k.PrevDay, k.NextDay},
		{k.Reload, k.Help, k.Quit},
	}
}
