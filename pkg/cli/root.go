// Package cli implements the ajanda command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// options are shared by every command. Tests replace now.
type options struct {
	configPath string
	logLevel   string
	now        func() time.Time
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{now: time.Now})
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "ajanda",
		Short: "A personal organizer built around a tree of tasks",
		Long: `ajanda keeps your tasks as a tree: any task can have sub-tasks, parents
report the average progress of their children and complete themselves when
every child is done.

Tasks are stored locally in a JSON file or in MySQL, can be mirrored to a
Google Calendar and imported from Taskwarrior or Org-mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ~/.config/ajanda/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newAddCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newDoneCmd(opts),
		newStatusCmd(opts),
		newProgressCmd(opts),
		newEditCmd(opts),
		newMoveCmd(opts),
		newArchiveCmd(opts, true),
		newArchiveCmd(opts, false),
		newRmCmd(opts),
		newAgendaCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newSyncCmd(opts),
		newRemindCmd(opts),
		newAuthCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled")
			return 130
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
