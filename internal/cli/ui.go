package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"planboard/internal/model"

	"github.com/spf13/cobra"
)

func newUICmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Read or change the persisted UI state of the vault",
	}
	cmd.AddCommand(newUIGetCmd(app))
	cmd.AddCommand(newUISetCmd(app))
	return cmd
}

func newUIGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the vault's UI state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b := newBoard(app)
			defer b.close(ctx)
			if err := b.backend.Ensure(); err != nil {
				return writeErr(cmd, err)
			}
			if err := b.ps.LoadUIState(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": uiOrEmpty(b.ps.State().UIState)})
		},
	}
}

func newUISetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Merge keys into the vault's UI state (dotted keys nest; values are JSON or plain strings)",
		Example: strings.TrimSpace(`
  planboard ui set timeline.mode=week sidebar.collapsed=true
  planboard ui set filter='{"tags":["work"]}'
`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial, err := parseAssignments(args)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			b := newBoard(app)
			defer b.close(ctx)
			if err := b.backend.Ensure(); err != nil {
				return writeErr(cmd, err)
			}
			if err := b.ps.LoadUIState(ctx); err != nil {
				return writeErr(cmd, err)
			}
			b.ps.SetUIState(partial)
			if err := b.ps.FlushUIState(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": uiOrEmpty(b.ps.State().UIState)})
		},
	}
}

// parseAssignments turns ["a.b=1", "c=x"] into {"a":{"b":1},"c":"x"}.
func parseAssignments(args []string) (model.UIState, error) {
	out := model.UIState{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected key=value)", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}

		parts := strings.Split(key, ".")
		m := map[string]any(out)
		for _, p := range parts[:len(parts)-1] {
			if p == "" {
				return nil, fmt.Errorf("invalid key %q", key)
			}
			next, ok := m[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[p] = next
			}
			m = next
		}
		last := parts[len(parts)-1]
		if last == "" {
			return nil, fmt.Errorf("invalid key %q", key)
		}
		m[last] = v
	}
	return out, nil
}

func uiOrEmpty(s model.UIState) model.UIState {
	if s == nil {
		return model.UIState{}
	}
	return s
}
