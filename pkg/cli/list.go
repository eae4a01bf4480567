package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/ajanda/pkg/store/local"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
)

const watchDebounce = 500 * time.Millisecond

func render(w io.Writer, view string, snap *tasktree.Snapshot, now time.Time) error {
	r := newRenderer(now)
	switch view {
	case "tree":
		fmt.Fprint(w, r.tree(snap))
	case "list":
		fmt.Fprint(w, r.list(snap))
	case "kanban":
		fmt.Fprint(w, r.kanban(snap))
	case "archived":
		fmt.Fprint(w, r.archived(snap))
	default:
		return fmt.Errorf("unknown view %q: must be tree, list, kanban or archived", view)
	}
	return nil
}

func newListCmd(opts *options) *cobra.Command {
	var (
		view  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks as a tree, an indented list or a kanban board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if err := render(out(cmd), view, a.engine.Snapshot(), a.now()); err != nil {
					return err
				}
				if !watch {
					return nil
				}
				ls, ok := a.store.(*local.Store)
				if !ok {
					return fmt.Errorf("--watch needs the local storage backend")
				}
				return watchTasks(cmd.Context(), a, ls, func(snap *tasktree.Snapshot) {
					if err := render(out(cmd), view, snap, a.now()); err != nil {
						a.logger.Warn("failed to render", "err", err)
					}
				})
			})
		},
	}
	cmd.Flags().StringVarP(&view, "view", "v", "tree", "tree, list, kanban or archived")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render whenever the task file changes")
	return cmd
}

// watchTasks reloads the engine from the local store each time its file is
// rewritten, until ctx is cancelled.
func watchTasks(ctx context.Context, a *app, ls *local.Store, onChange func(*tasktree.Snapshot)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// The store replaces the file by renaming, so watch the directory.
	dir, name := filepath.Split(ls.Path())
	if err := watcher.Add(filepath.Clean(dir)); err != nil {
		return fmt.Errorf("error watching directory: %w", err)
	}
	a.logger.Info("watching for changes", "path", ls.Path())

	reload := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			tasks, err := a.store.Load(ctx)
			if err != nil {
				a.logger.Warn("failed to reload tasks", "err", err)
				continue
			}
			onChange(a.engine.Replace(tasks))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", "err", err)
		}
	}
}

func newAgendaCmd(opts *options) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Show overdue tasks, today's tasks and what is coming up",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			return withApp(cmd, opts, func(a *app) error {
				fmt.Fprint(out(cmd), newRenderer(a.now()).agenda(a.engine.Snapshot(), days))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "how far ahead to look")
	return cmd
}
