package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
)

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func newAddCmd(opts *options) *cobra.Command {
	var (
		parent, priority, due, start, project, description string
		tags                                               []string
		estimate                                           float64
		interactive                                        bool
	)
	cmd := &cobra.Command{
		Use:   "add [title...]",
		Short: "Create a task",
		Example: `  ajanda add Buy paint --due "next saturday" --tag home
  ajanda add --parent 3f2a Sand the walls
  ajanda add -i`,
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			if interactive {
				if err := runAddForm(&title, &description, &priority, &due, &tags); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						fmt.Fprintln(cmd.ErrOrStderr(), "Task creation cancelled.")
						return nil
					}
					return fmt.Errorf("form error: %w", err)
				}
			}
			if strings.TrimSpace(title) == "" {
				return errors.New("a title is required")
			}

			return withApp(cmd, opts, func(a *app) error {
				now := a.now()
				d := tasktree.Draft{
					Title:          title,
					Description:    description,
					ProjectID:      project,
					Tags:           tags,
					EstimatedHours: estimate,
				}
				var err error
				if d.Priority, err = model.ParsePriority(priority); err != nil {
					return err
				}
				if d.DueDate, err = parseDate(due, now); err != nil {
					return err
				}
				if d.StartDate, err = parseDate(start, now); err != nil {
					return err
				}
				if parent != "" {
					p, err := resolve(a.engine.Snapshot(), parent)
					if err != nil {
						return err
					}
					d.ParentID = p.ID
				}

				t, snap, err := a.engine.Create(d)
				if err != nil {
					return err
				}
				// A new open child reopens a parent that was done.
				snap = a.engine.Propagate(t.ID)
				fmt.Fprintf(out(cmd), "Created %s\n", newRenderer(now).line(t, snap.EffectiveProgress(t.ID)))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&parent, "parent", "p", "", "parent task id or id prefix")
	f.StringVar(&priority, "priority", "medium", "low, medium or high")
	f.StringVarP(&due, "due", "d", "", `due date, e.g. 2025-04-01, "tomorrow", "next friday"`)
	f.StringVar(&start, "start", "", "start date")
	f.StringVar(&project, "project", "", "project reference")
	f.StringVar(&description, "description", "", "longer notes")
	f.StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	f.Float64Var(&estimate, "estimate", 0, "estimated hours")
	f.BoolVarP(&interactive, "interactive", "i", false, "fill in the task with a form")
	return cmd
}

func runAddForm(title, description, priority, due *string, tags *[]string) error {
	tagInput := strings.Join(*tags, ", ")
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Description("What needs doing (required)").
				Value(title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title is required")
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				CharLimit(5000).
				Value(description),
			huh.NewSelect[string]().
				Title("Priority").
				Options(
					huh.NewOption("Low", "low"),
					huh.NewOption("Medium (default)", "medium"),
					huh.NewOption("High", "high"),
				).
				Value(priority),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Due").
				Description(`Optional, e.g. 2025-04-01 or "next friday"`).
				Value(due),
			huh.NewInput().
				Title("Tags").
				Description("Comma-separated (optional)").
				Value(&tagInput),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	*tags = splitTags(tagInput)
	return nil
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its sub-tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				snap := a.engine.Snapshot()
				t, err := resolve(snap, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(out(cmd), newRenderer(a.now()).detail(snap, t))
				return nil
			})
		},
	}
}

// mutate resolves args[0] and applies fn, then prints the task again.
func mutate(cmd *cobra.Command, opts *options, ref string, fn func(a *app, t model.Task) (*tasktree.Snapshot, error)) error {
	return withApp(cmd, opts, func(a *app) error {
		t, err := resolve(a.engine.Snapshot(), ref)
		if err != nil {
			return err
		}
		snap, err := fn(a, t)
		if err != nil {
			return err
		}
		if updated, ok := snap.Get(t.ID); ok {
			fmt.Fprintln(out(cmd), newRenderer(a.now()).line(updated, snap.EffectiveProgress(t.ID)))
		}
		return nil
	})
}

func newDoneCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between done and todo",
		Long: `Toggle a task between done and todo.

When every sub-task of a parent is done the parent is completed too, and so on
up the tree. Reopening a sub-task of a done parent reopens that parent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, opts, args[0], func(a *app, t model.Task) (*tasktree.Snapshot, error) {
				return a.engine.ToggleDone(t.ID)
			})
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <todo|in-progress|waiting|done>",
		Short: "Set the status of a task",
		Long: `Set the status of a task. Moving to done sets its progress to 100 and
moving away from done resets it to 0. The parent is re-checked afterwards.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"todo", "in-progress", "waiting", "done"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, opts, args[0], func(a *app, t model.Task) (*tasktree.Snapshot, error) {
				if _, err := a.engine.Update(t.ID, tasktree.StatusChange{Status: model.Status(args[1])}); err != nil {
					return nil, err
				}
				return a.engine.Propagate(t.ID), nil
			})
		},
	}
}

func newProgressCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <0-100>",
		Short: "Set the progress of a task without sub-tasks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
			if err != nil {
				return fmt.Errorf("invalid progress %q: %w", args[1], err)
			}
			return mutate(cmd, opts, args[0], func(a *app, t model.Task) (*tasktree.Snapshot, error) {
				if _, err := a.engine.Update(t.ID, tasktree.ProgressChange{Progress: pct}); err != nil {
					return nil, err
				}
				return a.engine.Propagate(t.ID), nil
			})
		},
	}
}

func newEditCmd(opts *options) *cobra.Command {
	var (
		title, description, project, priority, due, start, repeat string
		tags                                                      []string
		estimate, actual                                          float64
		order                                                     int
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Example: `  ajanda edit 3f2a --title "Paint the hallway" --due friday
  ajanda edit 3f2a --due none --tag home --tag weekend`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			return mutate(cmd, opts, args[0], func(a *app, t model.Task) (*tasktree.Snapshot, error) {
				now := a.now()
				var changes []tasktree.Mutation

				var details tasktree.DetailsChange
				touched := false
				if f.Changed("title") {
					details.Title, touched = &title, true
				}
				if f.Changed("description") {
					details.Description, touched = &description, true
				}
				if f.Changed("project") {
					details.ProjectID, touched = &project, true
				}
				if f.Changed("tag") {
					details.Tags, touched = &tags, true
				}
				if f.Changed("estimate") {
					details.EstimatedHours, touched = &estimate, true
				}
				if f.Changed("actual") {
					details.ActualHours, touched = &actual, true
				}
				if f.Changed("repeat") {
					rule := model.RepeatRule(repeat)
					details.RepeatRule, touched = &rule, true
				}
				if touched {
					changes = append(changes, details)
				}

				var sched tasktree.ScheduleChange
				if f.Changed("due") {
					d, err := parseDate(due, now)
					if err != nil {
						return nil, err
					}
					sched.DueDate = &d
				}
				if f.Changed("start") {
					d, err := parseDate(start, now)
					if err != nil {
						return nil, err
					}
					sched.StartDate = &d
				}
				if sched.DueDate != nil || sched.StartDate != nil {
					changes = append(changes, sched)
				}

				if f.Changed("priority") {
					p, err := model.ParsePriority(priority)
					if err != nil {
						return nil, err
					}
					changes = append(changes, tasktree.PriorityChange{Priority: p})
				}
				if f.Changed("order") {
					changes = append(changes, tasktree.OrderChange{OrderIndex: order})
				}

				if len(changes) == 0 {
					return nil, errors.New("nothing to change, see --help for the available flags")
				}
				snap := a.engine.Snapshot()
				for _, m := range changes {
					var err error
					if snap, err = a.engine.Update(t.ID, m); err != nil {
						return nil, err
					}
				}
				return snap, nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&description, "description", "", "new description")
	f.StringVar(&project, "project", "", "project reference")
	f.StringVar(&priority, "priority", "", "low, medium or high")
	f.StringVarP(&due, "due", "d", "", `due date, "none" clears it`)
	f.StringVar(&start, "start", "", `start date, "none" clears it`)
	f.StringVar(&repeat, "repeat", "", "none, daily, weekly or monthly")
	f.StringSliceVarP(&tags, "tag", "t", nil, "replace the tags (repeatable)")
	f.Float64Var(&estimate, "estimate", 0, "estimated hours")
	f.Float64Var(&actual, "actual", 0, "hours spent")
	f.IntVar(&order, "order", 0, "position among siblings")
	return cmd
}

func newMoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> [new-parent-id]",
		Short: "Move a task under another task, or to the top level",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, opts, args[0], func(a *app, t model.Task) (*tasktree.Snapshot, error) {
				parentID := ""
				if len(args) == 2 {
					p, err := resolve(a.engine.Snapshot(), args[1])
					if err != nil {
						return nil, err
					}
					parentID = p.ID
				}
				snap, err := a.engine.Reparent(t.ID, parentID)
				var cycle *tasktree.CycleError
				if errors.As(err, &cycle) {
					return nil, fmt.Errorf("cannot move a task under itself or one of its sub-tasks: %w", err)
				}
				return snap, err
			})
		},
	}
}

func newArchiveCmd(opts *options, archive bool) *cobra.Command {
	use, short := "archive <id>", "Hide a task and its sub-tasks"
	if !archive {
		use, short = "restore <id>", "Bring back an archived task"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, opts, args[0], func(a *app, t model.Task) (*tasktree.Snapshot, error) {
				return a.engine.SetArchived(t.ID, archive)
			})
		},
	}
}

func newRmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task and all of its sub-tasks for good",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				snap := a.engine.Snapshot()
				t, err := resolve(snap, args[0])
				if err != nil {
					return err
				}
				n := len(snap.DescendantIDs(t.ID))
				if _, err := a.engine.Delete(t.ID); err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Deleted %s %q and %d sub-task(s)\n", shortID(t.ID), t.Title, n)
				return nil
			})
		},
	}
}
