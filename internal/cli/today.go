package cli

import (
	"fmt"

	"planboard/internal/model"
	"planboard/internal/timeline"

	"github.com/spf13/cobra"
)

func newTodayCmd(app *App) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show the board and timeline for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := normalizeDate(date)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := openBoard(cmd.Context(), app, d)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(cmd.Context())
			return writeOut(cmd, app, map[string]any{"data": b.ps.State().TodayData})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to show (YYYY-MM-DD, default today)")
	return cmd
}

func newTimelineCmd(app *App) *cobra.Command {
	var (
		date   string
		week   bool
		extent float64
	)
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Lay out scheduled tasks as busy and free blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := normalizeDate(date)
			if err != nil {
				return writeErr(cmd, err)
			}
			mode := timeline.ModeDay
			if week {
				mode = timeline.ModeWeek
			}
			b, err := openBoard(cmd.Context(), app, d)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(cmd.Context())

			m, err := b.ps.Timeline(mode, timeZero, extent)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": m})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to show (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&week, "week", false, "Show the Monday-start week containing --date")
	cmd.Flags().Float64Var(&extent, "extent", 1, "Track extent the block offsets and sizes are scaled to")
	return cmd
}

func newSlotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Timeline slot queries",
	}
	cmd.AddCommand(newSlotCheckCmd(app))
	return cmd
}

type slotResult struct {
	Available bool         `json:"available"`
	Start     string       `json:"start"`
	End       string       `json:"end"`
	Conflicts []model.Task `json:"conflicts"`
}

func newSlotCheckCmd(app *App) *cobra.Command {
	var (
		start    string
		date     string
		duration int
		exclude  string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a time slot is free",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration <= 0 {
				return writeErr(cmd, fmt.Errorf("--duration must be a positive number of minutes"))
			}
			d, err := normalizeDate(date)
			if err != nil {
				return writeErr(cmd, err)
			}
			at, err := parseWhen(start, d)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := openBoard(cmd.Context(), app, d)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(cmd.Context())

			conflicts := b.ps.SlotConflicts(at, duration, exclude)
			if conflicts == nil {
				conflicts = []model.Task{}
			}
			return writeOut(cmd, app, map[string]any{"data": slotResult{
				Available: len(conflicts) == 0,
				Start:     at.Format(timeLayout),
				End:       at.Add(minutes(duration)).Format(timeLayout),
				Conflicts: conflicts,
			}})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Slot start (HH:MM on --date, or a timestamp)")
	cmd.Flags().StringVar(&date, "date", "", "Day for an HH:MM --start (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Slot length in minutes")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Task id to ignore (the task being moved)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}
