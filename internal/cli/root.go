package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"planboard/internal/config"
	"planboard/internal/format"
	"planboard/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	ConfigPath string
	PrettyJSON bool
	Format     string
	Verbose    bool

	cfg config.Config
	log *slog.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "planboard",
		Short:         "Planboard: today's kanban board and timeline (CLI + TUI)",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive board
  planboard

  # Today's board as JSON
  planboard today

  # Add a task and put it on the timeline
  planboard tasks create --title "Write report" --estimate 45
  planboard tasks schedule <task-id> --at 10:30

  # Direct task lookup (shortcut for: planboard tasks show <task-id>)
  planboard 3f0c9a4e-5d1b-4c57-9f0e-1f7f3c2b8a61
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := app.init(cmd); err != nil {
			return writeErr(cmd, err)
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("PLANBOARD_DIR", ""), "Path to store dir (default: nearest .planboard above the working directory)")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("PLANBOARD_CONFIG", ""), "Config file (default: <dir>/planboard.yaml, then $PLANBOARD_CONFIG_DIR/planboard.yaml)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("PLANBOARD_FORMAT", "json"), "Output format (json|edn|yaml)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Log operations to stderr")

	cmd.AddCommand(newTodayCmd(app))
	cmd.AddCommand(newTimelineCmd(app))
	cmd.AddCommand(newSlotCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newUICmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

func (app *App) init(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if app.Verbose {
		level = slog.LevelDebug
	}
	app.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if _, err := format.Parse(app.Format); err != nil {
		return err
	}
	if strings.TrimSpace(app.Dir) == "" {
		dir, err := store.DefaultDir()
		if err != nil {
			return err
		}
		app.Dir = dir
	}
	cfg, err := config.Load(app.ConfigPath, app.Dir)
	if err != nil {
		return err
	}
	app.cfg = cfg
	app.log.Debug("config loaded", "dir", app.Dir, "config", cfg.Path, "vault_id", cfg.VaultID)
	return nil
}

func newConfigCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOut(cmd, app, map[string]any{
				"data": app.cfg,
				"meta": map[string]any{"dir": app.Dir},
			})
		},
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

// writeErr prints err once and marks it as reported.
func writeErr(cmd *cobra.Command, err error) error {
	if err == nil || IsReported(err) {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), describe(err))
	return reportedError{err: err}
}
