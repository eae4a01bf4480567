package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/ajanda/pkg/config"
	"github.com/harrisonrobin/ajanda/pkg/logging"
	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/persist"
	"github.com/harrisonrobin/ajanda/pkg/store"
	"github.com/harrisonrobin/ajanda/pkg/store/local"
	"github.com/harrisonrobin/ajanda/pkg/store/mysql"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
)

const flushTimeout = time.Minute

// app is one session: a loaded engine whose writes drain through the
// dispatcher into the configured store.
type app struct {
	cfg    *config.Config
	dir    string
	logger *slog.Logger
	store  store.Store
	disp   *persist.Dispatcher
	engine *tasktree.Engine
	now    func() time.Time
}

// loadConfig reads the configuration and installs the logger.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, string, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, "", nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logger := logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	dir := filepath.Dir(opts.configPath)
	if opts.configPath == "" {
		if dir, err = config.GetConfigDir(); err != nil {
			return nil, "", nil, err
		}
	}
	return cfg, dir, logger, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, []persist.Option, error) {
	opts := []persist.Option{
		persist.WithLogger(logger),
		persist.WithRetryMaxElapsed(cfg.Persist.RetryMaxElapsed),
	}
	switch cfg.Storage.Backend {
	case "mysql":
		if cfg.Storage.DSN == "" {
			return nil, nil, errors.New("storage.dsn is required for the mysql backend")
		}
		s, err := mysql.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, append(opts, persist.WithRetryable(mysql.IsRetryableError)), nil
	default:
		s, err := local.New(cfg.Storage.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, opts, nil
	}
}

// openApp loads every task and starts the write-behind dispatcher.
func openApp(cmd *cobra.Command, opts *options) (*app, error) {
	ctx := cmd.Context()
	cfg, dir, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	st, popts, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tasks, err := st.Load(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	disp := persist.New(st, popts...)
	engine := tasktree.New(tasks, tasktree.WithSink(disp), tasktree.WithLogger(logger), tasktree.WithClock(opts.now))
	disp.OnRebind(engine.Rebind)

	if orphans := engine.Snapshot().Orphans(); len(orphans) > 0 {
		logger.Warn("tasks reference a missing parent and are hidden", "count", len(orphans))
	}
	return &app{cfg: cfg, dir: dir, logger: logger, store: st, disp: disp, engine: engine, now: opts.now}, nil
}

// close waits for pending writes and reports any the store rejected.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	flushErr := a.disp.Flush(ctx)
	a.disp.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "err", err)
	}
	if flushErr != nil {
		return fmt.Errorf("timed out saving changes: %w", flushErr)
	}
	if n := a.disp.Failed(); n > 0 {
		return fmt.Errorf("%d change(s) could not be saved, see the log for details", n)
	}
	return nil
}

// withApp runs fn against an open session and always closes it.
func withApp(cmd *cobra.Command, opts *options, fn func(a *app) error) (err error) {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

// resolve finds a task by id or by a unique id prefix.
func resolve(snap *tasktree.Snapshot, ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Task{}, errors.New("empty task id")
	}
	if t, ok := snap.Get(ref); ok {
		return t, nil
	}
	var matches []model.Task
	for _, t := range snap.Tasks() {
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, &tasktree.NotFoundError{ID: ref}
	case 1:
		return matches[0], nil
	}
	return model.Task{}, fmt.Errorf("id prefix %q matches %d tasks, use more characters", ref, len(matches))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
