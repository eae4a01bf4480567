package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/ajanda/pkg/auth"
	"github.com/harrisonrobin/ajanda/pkg/colors"
	"github.com/harrisonrobin/ajanda/pkg/google"
	"github.com/harrisonrobin/ajanda/pkg/index"
	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/reminder"
)

const remindPoll = time.Minute

func newSyncCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror tasks to external services",
	}

	var calendarName string
	cal := &cobra.Command{
		Use:   "calendar",
		Short: "Mirror dated tasks to Google Calendar as all-day events",
		Long: `Mirror every task that has a start or due date to Google Calendar.

Done tasks are prefixed with ✓, tasks in progress with ‣ and overdue ones
with !. Events of archived, undated or deleted tasks are removed. Run
'ajanda auth' once before the first sync.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				name := a.cfg.Calendar.Name
				if calendarName != "" {
					name = calendarName
				}
				idx, err := index.NewEventIndex(a.dir)
				if err != nil {
					a.logger.Warn("failed to load event index, starting empty", "err", err)
				}
				cc, err := colors.NewColorCache(a.dir)
				if err != nil {
					a.logger.Warn("failed to load color cache, starting empty", "err", err)
				}

				client, err := google.NewClient(cmd.Context(), name, a.dir, idx, cc, a.logger)
				if err != nil {
					return fmt.Errorf("error creating Google Calendar client: %w", err)
				}
				report, err := client.SyncAll(cmd.Context(), a.engine.Snapshot(), a.now())
				fmt.Fprintf(out(cmd), "Calendar %q: %s\n", name, report)
				if err != nil {
					return err
				}
				if report.Failed > 0 {
					return fmt.Errorf("%d task(s) failed to sync", report.Failed)
				}
				return nil
			})
		},
	}
	cal.Flags().StringVar(&calendarName, "calendar", "", "calendar name (overrides calendar.name)")
	cmd.AddCommand(cal)
	return cmd
}

func newRemindCmd(opts *options) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Print reminders for tasks due today or tomorrow",
		Long: `Print reminders for open tasks due today or tomorrow.

A reminder fires at reminder.hour on the due date, or right away when that
hour has already passed today. Each reminder fires once per due date. With
--follow the command keeps running and re-reads the tasks every minute.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				table, err := reminder.NewTable(a.dir)
				if err != nil {
					return err
				}
				check := func() error {
					now := a.now()
					table.Schedule(a.engine.Snapshot().Tasks(), now, a.cfg.Reminder.Hour)
					// Late reminders are armed LateDelay ahead; a single run should still see them.
					for _, e := range table.Sweep(now.Add(reminder.LateDelay)) {
						day := "tomorrow"
						if e.Due.Equal(model.DateOf(now).Time) {
							day = "today"
						}
						fmt.Fprintf(out(cmd), "⏰ %s is due %s (%s)\n", e.Title, day, shortID(e.TaskID))
					}
					return table.Save()
				}
				if err := check(); err != nil {
					return err
				}
				if !follow {
					if next, ok := table.Next(); ok {
						fmt.Fprintf(out(cmd), "Next reminder: %s at %s\n", next.Title, next.FireAt.Format("Mon 15:04"))
					}
					return nil
				}

				ticker := time.NewTicker(remindPoll)
				defer ticker.Stop()
				for {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-ticker.C:
						tasks, err := a.store.Load(cmd.Context())
						if err != nil {
							a.logger.Warn("failed to reload tasks", "err", err)
							continue
						}
						a.engine.Replace(tasks)
						if err := check(); err != nil {
							a.logger.Warn("failed to save reminders", "err", err)
						}
					}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep running and print reminders as they come due")
	return cmd
}

func newAuthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize ajanda to manage your Google Calendar",
		Long: `Authorize ajanda to manage your Google Calendar.

Download an OAuth client (desktop app) from the Google Cloud console and save
it as credentials.json in the ajanda config directory first. Any existing
token is replaced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, dir, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			tokenFile := filepath.Join(dir, auth.TokenFile)
			if err := os.Remove(tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("could not delete token file '%s': %w. Please delete it manually", tokenFile, err)
			}
			if err := auth.Login(cmd.Context(), dir, out(cmd), logger); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(out(cmd), "Authentication successful! Token saved to %s\n", tokenFile)
			return nil
		},
	}
}
