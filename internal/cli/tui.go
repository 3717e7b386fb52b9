package cli

import (
	"planboard/internal/tui"

	"github.com/spf13/cobra"
)

func runTUI(cmd *cobra.Command, app *App) error {
	b := newBoard(app)
	if err := b.backend.Ensure(); err != nil {
		return writeErr(cmd, err)
	}
	// Load failures show up as a notice inside the board.
	if err := tui.Run(cmd.Context(), b.ps, tui.Options{}); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
