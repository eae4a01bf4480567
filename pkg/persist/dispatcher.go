// Package persist replays engine changes against a store in the background.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/store"
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	}
	return "barrier"
}

type job struct {
	kind  opKind
	id    string
	task  model.Task
	patch model.Patch
	done  chan struct{}
}

// Dispatcher is a FIFO of store writes drained by a single goroutine, so
// writes land in the order they were enqueued. Failed writes are retried
// with exponential backoff, then logged and dropped.
type Dispatcher struct {
	store      store.Store
	logger     *slog.Logger
	maxElapsed time.Duration
	retryable  func(error) bool

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	queue    []job
	closed   bool
	aliases  map[string]string
	onRebind func(oldID, newID string)
	failed   int

	wake    chan struct{}
	stopped chan struct{}
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithRetryMaxElapsed bounds the time spent retrying one write.
// Zero or less means a single attempt.
func WithRetryMaxElapsed(v time.Duration) Option {
	return func(d *Dispatcher) { d.maxElapsed = v }
}

// WithRetryable limits retries to errors f accepts. By default every error
// other than a cancelled context is retried.
func WithRetryable(f func(error) bool) Option {
	return func(d *Dispatcher) { d.retryable = f }
}

// New starts the worker. Call Close to stop it.
func New(s store.Store, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:      s,
		logger:     slog.Default(),
		maxElapsed: 30 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
		aliases:    make(map[string]string),
		wake:       make(chan struct{}, 1),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// OnRebind registers the callback invoked from the worker when the store
// assigns an id that differs from the optimistic one.
func (d *Dispatcher) OnRebind(f func(oldID, newID string)) {
	d.mu.Lock()
	d.onRebind = f
	d.mu.Unlock()
}

func (d *Dispatcher) Insert(t model.Task) {
	d.enqueue(job{kind: opInsert, id: t.ID, task: t})
}

func (d *Dispatcher) Update(id string, p model.Patch) {
	d.enqueue(job{kind: opUpdate, id: id, patch: p})
}

func (d *Dispatcher) Delete(id string) {
	d.enqueue(job{kind: opDelete, id: id})
}

func (d *Dispatcher) enqueue(j job) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, dropping write", "op", j.kind.String(), "task_id", j.id)
		return false
	}
	d.queue = append(d.queue, j)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Flush blocks until every write enqueued before the call has been handled.
func (d *Dispatcher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !d.enqueue(job{kind: opBarrier, done: done}) {
		return errors.New("dispatcher is closed")
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failed reports how many writes were dropped after exhausting retries.
func (d *Dispatcher) Failed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failed
}

// Close stops accepting writes, abandons retries in flight and waits for the
// worker to exit. Writes still queued are dropped; Flush first to keep them.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return nil
	}
	d.closed = true
	dropped := 0
	for _, j := range d.queue {
		if j.kind == opBarrier {
			close(j.done)
			continue
		}
		dropped++
	}
	d.queue = nil
	d.mu.Unlock()

	if dropped > 0 {
		d.logger.Warn("dropping queued writes on close", "count", dropped)
	}
	d.cancel()
	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.stopped
	return nil
}

func (d *Dispatcher) next() (job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return job{}, false
	}
	j := d.queue[0]
	d.queue = d.queue[1:]
	return j, true
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		j, ok := d.next()
		if !ok {
			d.mu.Lock()
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			<-d.wake
			continue
		}
		if j.kind == opBarrier {
			close(j.done)
			continue
		}
		d.handle(j)
	}
}

func (d *Dispatcher) resolve(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if real, ok := d.aliases[id]; ok {
		return real
	}
	return id
}

func (d *Dispatcher) handle(j job) {
	id := d.resolve(j.id)
	var err error
	switch j.kind {
	case opInsert:
		t := j.task
		t.ParentID = d.resolve(t.ParentID)
		var stored model.Task
		err = d.retry(func(ctx context.Context) error {
			var ierr error
			stored, ierr = d.store.Insert(ctx, t)
			return ierr
		})
		if err == nil && stored.ID != "" && stored.ID != t.ID {
			d.rebind(t.ID, stored.ID)
		}
	case opUpdate:
		p := j.patch
		if p.ParentID != nil {
			p.ParentID = model.Ptr(d.resolve(*p.ParentID))
		}
		err = d.retry(func(ctx context.Context) error {
			return d.store.Update(ctx, id, p)
		})
	case opDelete:
		err = d.retry(func(ctx context.Context) error {
			return d.store.Delete(ctx, id)
		})
	}
	if err != nil {
		d.mu.Lock()
		d.failed++
		d.mu.Unlock()
		d.logger.Error("failed to persist task change", "op", j.kind.String(), "task_id", id, "err", err)
	}
}

func (d *Dispatcher) rebind(oldID, newID string) {
	d.mu.Lock()
	d.aliases[oldID] = newID
	cb := d.onRebind
	d.mu.Unlock()

	d.logger.Debug("store assigned a new id", "old", oldID, "new", newID)
	if cb != nil {
		cb(oldID, newID)
	}
}

func (d *Dispatcher) retry(op func(ctx context.Context) error) error {
	if d.maxElapsed <= 0 {
		return op(d.ctx)
	}
	// BackOff implementations are stateful; build one per write.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = d.maxElapsed
	return backoff.Retry(func() error {
		err := op(d.ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		if d.retryable != nil && !d.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, d.ctx))
}
