// Package tui is the interactive board: a kanban of the day's tasks with keyboard drag and
// drop, a timeline pane and the running timer.
package tui

import (
	"context"

	"planboard/internal/planning"

	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	// Date is the day to open (YYYY-MM-DD); empty means today.
	Date string
}

// Run blocks until the user quits, then flushes pending UI state.
func Run(ctx context.Context, ps *planning.Store, opts Options) error {
	applyThemePreference()
	applyColorProfilePreference()

	m := newModel(ctx, ps, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Subscribers run on the goroutine that changed the store, which may be the program's
	// own update loop, so the send must not block.
	unsubscribe := ps.Subscribe(func(planning.State) {
		go p.Send(stateChangedMsg{})
	})
	defer unsubscribe()

	_, err := p.Run()
	if cerr := ps.Close(context.WithoutCancel(ctx)); err == nil {
		err = cerr
	}
	return err
}
