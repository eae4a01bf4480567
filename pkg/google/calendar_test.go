package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/ajanda/pkg/colors"
	"github.com/harrisonrobin/ajanda/pkg/index"
	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
	"github.com/harrisonrobin/ajanda/pkg/util"
)

// fakeCalendar is an in-memory stand-in for the events endpoints of one calendar.
type fakeCalendar struct {
	mu      sync.Mutex
	events  map[string]*calendar.Event
	nextID  int
	inserts int
	patches int
	deletes int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: make(map[string]*calendar.Event)}
}

func (f *fakeCalendar) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &calendar.CalendarList{Items: []*calendar.CalendarListEntry{
			{Id: "other@group", Summary: "Other"},
			{Id: "tasks@group", Summary: "Tasks"},
		}})
	})
	mux.HandleFunc("GET /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		want := r.URL.Query().Get("privateExtendedProperty")
		var items []*calendar.Event
		for _, ev := range f.events {
			if want == "" || want == util.TaskIDProperty+"="+ev.ExtendedProperties.Private[util.TaskIDProperty] {
				items = append(items, ev)
			}
		}
		writeJSON(w, &calendar.Events{Items: items})
	})
	mux.HandleFunc("GET /calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, ev)
	})
	mux.HandleFunc("POST /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		ev := &calendar.Event{}
		if err := json.NewDecoder(r.Body).Decode(ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		f.inserts++
		ev.Id = fmt.Sprintf("ev%d", f.nextID)
		f.events[ev.Id] = ev
		writeJSON(w, ev)
	})
	mux.HandleFunc("PATCH /calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		patch := &calendar.Event{}
		if err := json.NewDecoder(r.Body).Decode(patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
			return
		}
		f.patches++
		if patch.Summary != "" {
			ev.Summary = patch.Summary
		}
		if patch.Description != "" {
			ev.Description = patch.Description
		}
		if patch.ColorId != "" {
			ev.ColorId = patch.ColorId
		}
		if patch.Start != nil {
			ev.Start, ev.End = patch.Start, patch.End
		}
		writeJSON(w, ev)
	})
	mux.HandleFunc("DELETE /calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deletes++
		delete(f.events, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeCalendar) summaries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.events {
		out = append(out, ev.Summary)
	}
	return out
}

func newService(t *testing.T, f *fakeCalendar) *calendar.Service {
	t.Helper()
	ts := httptest.NewServer(f.handler())
	t.Cleanup(ts.Close)
	srv, err := calendar.NewService(context.Background(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	return srv
}

func newTestClient(t *testing.T, f *fakeCalendar) (*CalendarClient, *index.EventIndex) {
	t.Helper()
	dir := t.TempDir()
	idx, err := index.NewEventIndex(dir)
	require.NoError(t, err)
	cc, err := colors.NewColorCache(dir)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCalendarClient(newService(t, f), "tasks@group", idx, cc, logger), idx
}

var syncNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestFindCalendarID(t *testing.T) {
	srv := newService(t, newFakeCalendar())

	id, err := FindCalendarID(context.Background(), srv, "Tasks")
	require.NoError(t, err)
	assert.Equal(t, "tasks@group", id)

	_, err = FindCalendarID(context.Background(), srv, "Missing")
	assert.Error(t, err)
}

func TestSyncEventCreatesThenPatches(t *testing.T) {
	f := newFakeCalendar()
	c, idx := newTestClient(t, f)
	ctx := context.Background()
	task := model.Task{ID: "t1", Title: "Dentist", Status: model.StatusTodo, DueDate: model.NewDate(2025, 3, 12)}

	ev, res, err := c.SyncEvent(ctx, util.EventSource{Task: task, Now: syncNow})
	require.NoError(t, err)
	assert.Equal(t, Created, res)
	assert.Equal(t, ev.Id, idx.Get("t1"))

	_, res, err = c.SyncEvent(ctx, util.EventSource{Task: task, Now: syncNow})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)

	task.Status = model.StatusDone
	_, res, err = c.SyncEvent(ctx, util.EventSource{Task: task, Progress: 100, Now: syncNow})
	require.NoError(t, err)
	assert.Equal(t, Updated, res)
	assert.Equal(t, []string{"✓ Dentist"}, f.summaries())
	assert.Equal(t, 1, f.inserts)
}

func TestSyncEventFindsEventWithoutIndex(t *testing.T) {
	f := newFakeCalendar()
	c, idx := newTestClient(t, f)
	ctx := context.Background()
	task := model.Task{ID: "t1", Title: "Gym", Status: model.StatusTodo, DueDate: model.NewDate(2025, 3, 12)}

	_, _, err := c.SyncEvent(ctx, util.EventSource{Task: task, Now: syncNow})
	require.NoError(t, err)
	idx.Remove("t1")

	_, res, err := c.SyncEvent(ctx, util.EventSource{Task: task, Now: syncNow})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res)
	assert.Equal(t, 1, f.inserts)
	assert.NotEmpty(t, idx.Get("t1"))
}

func TestSyncAll(t *testing.T) {
	f := newFakeCalendar()
	c, idx := newTestClient(t, f)
	ctx := context.Background()

	due := model.NewDate(2025, 3, 12)
	tasks := []model.Task{
		{ID: "p", Title: "Move house", Status: model.StatusTodo, DueDate: due, ProjectID: "home"},
		{ID: "c1", ParentID: "p", Title: "Pack", Status: model.StatusDone, Progress: 100, DueDate: due},
		{ID: "c2", ParentID: "p", Title: "Book van", Status: model.StatusTodo},
		{ID: "gone", Title: "Old errand", Status: model.StatusTodo, DueDate: due},
	}
	report, err := c.SyncAll(ctx, tasktree.NewSnapshot(tasks), syncNow)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Created: 3, Skipped: 1}, report)

	// Archive the parent, delete a task, and sync again.
	tasks[0].Archived = true
	report, err = c.SyncAll(ctx, tasktree.NewSnapshot(tasks[:3]), syncNow)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Deleted, "archived parent, its hidden child and the deleted task")
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, f.summaries())
	assert.Empty(t, idx.TaskIDs())
}

func TestSyncAllReportsProgress(t *testing.T) {
	f := newFakeCalendar()
	c, _ := newTestClient(t, f)

	due := model.NewDate(2025, 3, 12)
	snap := tasktree.NewSnapshot([]model.Task{
		{ID: "p", Title: "Launch", Status: model.StatusInProgress, DueDate: due},
		{ID: "a", ParentID: "p", Title: "a", Status: model.StatusDone, Progress: 100},
		{ID: "b", ParentID: "p", Title: "b", Status: model.StatusTodo},
	})

	_, err := c.SyncAll(context.Background(), snap, syncNow)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.events, 1)
	for _, ev := range f.events {
		assert.True(t, strings.Contains(ev.Description, "Progress: 50%"), ev.Description)
		assert.Equal(t, "‣ Launch", ev.Summary)
	}
}
