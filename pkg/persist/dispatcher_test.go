package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

type call struct {
	op       string
	id       string
	parentID string
}

type fakeStore struct {
	mu       sync.Mutex
	calls    []call
	failures int // fail this many calls before succeeding
	assign   map[string]string
	block    chan struct{}
}

func (f *fakeStore) record(c call) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset by peer")
	}
	f.calls = append(f.calls, c)
	return nil
}

func (f *fakeStore) Insert(_ context.Context, t model.Task) (model.Task, error) {
	if err := f.record(call{op: "insert", id: t.ID, parentID: t.ParentID}); err != nil {
		return model.Task{}, err
	}
	if id, ok := f.assign[t.ID]; ok {
		t.ID = id
	}
	return t, nil
}

func (f *fakeStore) Update(_ context.Context, id string, p model.Patch) error {
	c := call{op: "update", id: id}
	if p.ParentID != nil {
		c.parentID = *p.ParentID
	}
	return f.record(c)
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	return f.record(call{op: "delete", id: id})
}

func (f *fakeStore) Load(context.Context) ([]model.Task, error) { return nil, nil }
func (f *fakeStore) Close() error                              { return nil }

func (f *fakeStore) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func flush(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Flush(ctx))
}

func TestDispatcherPreservesOrder(t *testing.T) {
	fs := &fakeStore{}
	d := New(fs, WithRetryMaxElapsed(0))
	defer d.Close()

	d.Insert(model.Task{ID: "a"})
	d.Update("a", model.Patch{Title: model.Ptr("x")})
	d.Insert(model.Task{ID: "b", ParentID: "a"})
	d.Delete("a")
	flush(t, d)

	assert.Equal(t, []call{
		{op: "insert", id: "a"},
		{op: "update", id: "a"},
		{op: "insert", id: "b", parentID: "a"},
		{op: "delete", id: "a"},
	}, fs.snapshot())
	assert.Zero(t, d.Failed())
}

func TestDispatcherEnqueueDoesNotBlock(t *testing.T) {
	fs := &fakeStore{block: make(chan struct{})}
	d := New(fs, WithRetryMaxElapsed(0))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Update("a", model.Patch{Progress: model.Ptr(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a slow store")
	}
	close(fs.block)
	flush(t, d)
	assert.Len(t, fs.snapshot(), 100)
	require.NoError(t, d.Close())
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	fs := &fakeStore{failures: 1}
	d := New(fs, WithRetryMaxElapsed(10*time.Second))
	defer d.Close()

	d.Delete("a")
	flush(t, d)

	assert.Equal(t, []call{{op: "delete", id: "a"}}, fs.snapshot())
	assert.Zero(t, d.Failed())
}

func TestDispatcherDropsAfterFailure(t *testing.T) {
	fs := &fakeStore{failures: 1}
	d := New(fs, WithRetryMaxElapsed(0))
	defer d.Close()

	d.Delete("a")
	d.Delete("b")
	flush(t, d)

	assert.Equal(t, []call{{op: "delete", id: "b"}}, fs.snapshot())
	assert.Equal(t, 1, d.Failed())
}

func TestDispatcherRebindsAssignedIDs(t *testing.T) {
	fs := &fakeStore{assign: map[string]string{"tmp": "real"}}
	d := New(fs, WithRetryMaxElapsed(0))
	defer d.Close()

	var mu sync.Mutex
	var rebinds [][2]string
	d.OnRebind(func(oldID, newID string) {
		mu.Lock()
		rebinds = append(rebinds, [2]string{oldID, newID})
		mu.Unlock()
	})

	d.Insert(model.Task{ID: "tmp"})
	d.Insert(model.Task{ID: "kid", ParentID: "tmp"})
	d.Update("other", model.Patch{ParentID: model.Ptr("tmp")})
	d.Delete("tmp")
	flush(t, d)

	assert.Equal(t, []call{
		{op: "insert", id: "tmp"},
		{op: "insert", id: "kid", parentID: "real"},
		{op: "update", id: "other", parentID: "real"},
		{op: "delete", id: "real"},
	}, fs.snapshot())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][2]string{{"tmp", "real"}}, rebinds)
}

func TestDispatcherClose(t *testing.T) {
	fs := &fakeStore{}
	d := New(fs)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	d.Delete("a")
	assert.Error(t, d.Flush(context.Background()))
	assert.Empty(t, fs.snapshot())
}

func TestDispatcherSkipsRetryForPermanentErrors(t *testing.T) {
	fs := &fakeStore{failures: 1}
	d := New(fs,
		WithRetryMaxElapsed(10*time.Second),
		WithRetryable(func(error) bool { return false }),
	)
	defer d.Close()

	start := time.Now()
	d.Delete("a")
	flush(t, d)

	assert.Empty(t, fs.snapshot())
	assert.Equal(t, 1, d.Failed())
	assert.Less(t, time.Since(start), 5*time.Second)
}
