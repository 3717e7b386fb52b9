package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"planboard/internal/model"
	"planboard/internal/planning"
	"planboard/internal/reorder"
	"planboard/internal/statusutil"
	"planboard/internal/timeline"
	"planboard/internal/timemath"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "Create, change and schedule tasks",
	}
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksUpdateCmd(app))
	cmd.AddCommand(newTasksDoneCmd(app))
	cmd.AddCommand(newTasksReopenCmd(app))
	cmd.AddCommand(newTasksStartCmd(app))
	cmd.AddCommand(newTasksStopCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksScheduleCmd(app))
	return cmd
}

func newTasksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task and its timer log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBoard(ctx, app, "")
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(ctx)

			id := strings.TrimSpace(args[0])
			t, ok := b.ps.Task(id)
			if !ok {
				return writeErr(cmd, errNotFound("task", id))
			}
			timers, err := b.backend.TimerLog(ctx, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if timers == nil {
				timers = []model.Timer{}
			}
			return writeOut(cmd, app, map[string]any{
				"data": t,
				"meta": map[string]any{"timers": timers},
			})
		},
	}
}

type repeatFlags struct {
	strategy string
	every    int
	from     string
	until    string
	count    int
}

func (f *repeatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.strategy, "repeat", "", "Recurrence (day|week|month|year)")
	cmd.Flags().IntVar(&f.every, "every", 1, "Recurrence interval (every N days/weeks/...)")
	cmd.Flags().StringVar(&f.from, "repeat-from", "", "First occurrence (YYYY-MM-DD or timestamp; default --start or --due)")
	cmd.Flags().StringVar(&f.until, "until", "", "Last possible occurrence (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.count, "count", 0, "Number of occurrences")
}

// periodicity builds the rule, or nil when --repeat was not given.
func (f repeatFlags) periodicity(fallbackStart string) (*model.Periodicity, error) {
	if strings.TrimSpace(f.strategy) == "" {
		return nil, nil
	}
	if f.until != "" && f.count > 0 {
		return nil, fmt.Errorf("--until and --count are mutually exclusive")
	}
	p := &model.Periodicity{
		Strategy:  strings.ToLower(strings.TrimSpace(f.strategy)),
		Interval:  f.every,
		StartDate: strings.TrimSpace(f.from),
		EndRule:   "never",
	}
	if p.StartDate == "" {
		p.StartDate = fallbackStart
	}
	switch {
	case f.until != "":
		until := f.until
		p.EndRule = "date"
		p.EndDate = &until
	case f.count > 0:
		n := f.count
		p.EndRule = "count"
		p.EndCount = &n
	}
	return p, nil
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var (
		title, description, status, priority string
		tags                                 []string
		due, start, end, date                string
		estimate                             int
		repeat                               repeatFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := normalizeDate(date)
			if err != nil {
				return writeErr(cmd, err)
			}
			in := model.CreateTaskInput{
				Title: strings.TrimSpace(title),
				Tags:  tags,
			}
			if cmd.Flags().Changed("description") {
				in.Description = &description
			}
			if status != "" {
				st, err := statusutil.NormalizeStatus(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				in.Status = st
			}
			if priority != "" {
				p, err := statusutil.NormalizePriority(priority)
				if err != nil {
					return writeErr(cmd, err)
				}
				in.Priority = p
			}
			if due != "" {
				in.DueDate = &due
			}
			if cmd.Flags().Changed("estimate") {
				in.EstimateMin = &estimate
			}
			if start != "" {
				at, err := parseWhen(start, d)
				if err != nil {
					return writeErr(cmd, err)
				}
				in.ScheduledStart = &at
			}
			if end != "" {
				at, err := parseWhen(end, d)
				if err != nil {
					return writeErr(cmd, err)
				}
				in.ScheduledEnd = &at
			}

			fallback := due
			if in.ScheduledStart != nil {
				fallback = in.ScheduledStart.Format(timeLayout)
			}
			if fallback == "" {
				fallback = d
			}
			if fallback == "" {
				fallback = timemath.FormatDate(timemath.StartOfDay(timeNow()))
			}
			if in.Periodicity, err = repeat.periodicity(fallback); err != nil {
				return writeErr(cmd, err)
			}

			b, err := openBoard(ctx, app, d)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(ctx)

			t, err := b.ps.CreateTask(ctx, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": t})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&description, "description", "", "Task description (markdown)")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (todo|verify|done; backlog is an alias for todo)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (p0|p1|p2|p3)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD; default: the board's day)")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "Estimate in minutes")
	cmd.Flags().StringVar(&start, "start", "", "Scheduled start (HH:MM on --date, or a timestamp)")
	cmd.Flags().StringVar(&end, "end", "", "Scheduled end (HH:MM on --date, or a timestamp)")
	cmd.Flags().StringVar(&date, "date", "", "Board day (YYYY-MM-DD, default today)")
	repeat.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTasksUpdateCmd(app *App) *cobra.Command {
	var (
		title, description, status, priority string
		tags                                 []string
		due, start, end, date                string
		estimate                             int
		order                                int64
		clearDue, clearSchedule              bool
		repeat                               repeatFlags
	)
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change task fields (only the flags given are applied)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := normalizeDate(date)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			in := model.UpdateTaskInput{ID: id, ClearDueDate: clearDue, ClearSchedule: clearSchedule}
			changed := cmd.Flags().Changed

			if changed("title") {
				in.Title = &title
			}
			if changed("description") {
				in.Description = &description
			}
			if changed("status") {
				st, err := statusutil.NormalizeStatus(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				in.Status = &st
			}
			if changed("priority") {
				p, err := statusutil.NormalizePriority(priority)
				if err != nil {
					return writeErr(cmd, err)
				}
				in.Priority = &p
			}
			if changed("tag") {
				in.Tags = append([]string{}, tags...)
			}
			if changed("due") {
				in.DueDate = &due
			}
			if changed("estimate") {
				in.EstimateMin = &estimate
			}
			if changed("order") {
				in.OrderIndex = &order
			}
			if changed("start") {
				at, err := parseWhen(start, d)
				if err != nil {
					return writeErr(cmd, err)
				}
				in.ScheduledStart = &at
			}
			if changed("end") {
				at, err := parseWhen(end, d)
				if err != nil {
					return writeErr(cmd, err)
				}
				in.ScheduledEnd = &at
			}
			fallback := d
			if in.ScheduledStart != nil {
				fallback = in.ScheduledStart.Format(timeLayout)
			}
			if fallback == "" {
				fallback = timemath.FormatDate(timemath.StartOfDay(timeNow()))
			}
			if in.Periodicity, err = repeat.periodicity(fallback); err != nil {
				return writeErr(cmd, err)
			}

			b, err := openBoard(ctx, app, d)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(ctx)

			if err := b.ps.UpdateTask(ctx, in); err != nil {
				return writeErr(cmd, err)
			}
			return writeTask(cmd, app, b, id)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&description, "description", "", "Task description (markdown)")
	cmd.Flags().StringVar(&status, "status", "", "Status (todo|verify|done); use start/stop for doing")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (p0|p1|p2|p3)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Replace tags (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "Estimate in minutes")
	cmd.Flags().Int64Var(&order, "order", 0, "Order index within the column")
	cmd.Flags().StringVar(&start, "start", "", "Scheduled start (HH:MM on --date, or a timestamp)")
	cmd.Flags().StringVar(&end, "end", "", "Scheduled end (HH:MM on --date, or a timestamp)")
	cmd.Flags().BoolVar(&clearSchedule, "clear-schedule", false, "Take the task off the timeline")
	cmd.Flags().StringVar(&date, "date", "", "Board day (YYYY-MM-DD, default today)")
	repeat.register(cmd)
	return cmd
}

// taskAction runs one store operation on the task named by the single argument.
func taskAction(app *App, use, short string, run func(cmd *cobra.Command, b *board, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBoard(ctx, app, "")
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(ctx)

			id := strings.TrimSpace(args[0])
			if err := run(cmd, b, id); err != nil {
				return writeErr(cmd, err)
			}
			return writeTask(cmd, app, b, id)
		},
	}
}

func newTasksDoneCmd(app *App) *cobra.Command {
	return taskAction(app, "done", "Mark a task done", func(cmd *cobra.Command, b *board, id string) error {
		return b.ps.MarkDone(cmd.Context(), id)
	})
}

func newTasksReopenCmd(app *App) *cobra.Command {
	return taskAction(app, "reopen", "Move a done task back to todo", func(cmd *cobra.Command, b *board, id string) error {
		return b.ps.ReopenTask(cmd.Context(), id)
	})
}

func newTasksStartCmd(app *App) *cobra.Command {
	var due string
	cmd := taskAction(app, "start", "Start a task's timer (stops any other running task)", func(cmd *cobra.Command, b *board, id string) error {
		if due != "" {
			return b.ps.StartTaskWithDueDate(cmd.Context(), id, due)
		}
		return b.ps.StartTask(cmd.Context(), id)
	})
	cmd.Flags().StringVar(&due, "due", "", "Set this due date first (YYYY-MM-DD) when the task has none")
	return cmd
}

func newTasksStopCmd(app *App) *cobra.Command {
	return taskAction(app, "stop", "Stop a task's timer", func(cmd *cobra.Command, b *board, id string) error {
		return b.ps.StopTask(cmd.Context(), id)
	})
}

func newTasksDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and its timers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBoard(ctx, app, "")
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(ctx)

			id := strings.TrimSpace(args[0])
			if err := b.ps.DeleteTask(ctx, id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "deleted": true}})
		},
	}
}

func newTasksMoveCmd(app *App) *cobra.Command {
	var to string
	cmd := taskAction(app, "move", "Move a task to a column, or before another task", func(cmd *cobra.Command, b *board, id string) error {
		target := reorder.TaskTarget(strings.TrimSpace(to))
		if st, err := statusutil.NormalizeStatus(to); err == nil {
			target = reorder.ColumnTarget(st)
		}
		g := reorder.Gesture{DraggedTaskID: id, DropTarget: &target}
		if t, ok := b.ps.Task(id); ok {
			g.SourceColumn = t.Status
		}
		return b.ps.DropTask(cmd.Context(), g, planning.DropOptions{})
	})
	cmd.Flags().StringVar(&to, "to", "", "Target column (todo|doing|verify|done) or task id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newTasksScheduleCmd(app *App) *cobra.Command {
	var (
		at, date string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "schedule <task-id>",
		Short: "Place a task on the timeline (snapped to the grid)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := normalizeDate(date)
			if err != nil {
				return writeErr(cmd, err)
			}
			start, err := parseWhen(at, d)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := openBoard(ctx, app, timemath.FormatDate(start))
			if err != nil {
				return writeErr(cmd, err)
			}
			defer b.close(ctx)

			cfg := b.ps.TimelineConfig()
			slot, err := slotAt(cfg, start)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := strings.TrimSpace(args[0])
			target := reorder.SlotTarget(slot)
			err = b.ps.DropTask(ctx, reorder.Gesture{DraggedTaskID: id, DropTarget: &target}, planning.DropOptions{
				Mode: timeline.ModeDay,
				Ref:  timemath.StartOfDay(start),
				Confirmer: planning.ConfirmFunc(func(_ context.Context, conflicts []model.Task) bool {
					return force
				}),
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeTask(cmd, app, b, id)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Start (HH:MM on --date, or a timestamp)")
	cmd.Flags().StringVar(&date, "date", "", "Day for an HH:MM --at (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&force, "force", false, "Schedule even when the slot overlaps other tasks")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

// slotAt is the timeline position of start within the configured day.
func slotAt(cfg timeline.Config, start time.Time) (reorder.Slot, error) {
	startMin, endMin, err := cfg.Validate()
	if err != nil {
		return reorder.Slot{}, err
	}
	m := timemath.MinutesOfDay(start)
	if m < startMin || m > endMin {
		return reorder.Slot{}, fmt.Errorf("%s is outside the timeline (%s-%s)", timemath.FormatClock(m), cfg.DayStart, cfg.DayEnd)
	}
	f, err := timeline.FractionOf(cfg, start)
	if err != nil {
		return reorder.Slot{}, err
	}
	return reorder.Slot{Fraction: f}, nil
}

// writeTask re-reads the board and prints the task as the store now has it.
func writeTask(cmd *cobra.Command, app *App, b *board, id string) error {
	if err := b.ps.Reload(cmd.Context()); err != nil {
		return writeErr(cmd, err)
	}
	t, ok := b.ps.Task(id)
	if !ok {
		return writeErr(cmd, errNotFound("task", id))
	}
	return writeOut(cmd, app, map[string]any{"data": t})
}
