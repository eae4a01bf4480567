package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/ajanda/pkg/colors"
	"github.com/harrisonrobin/ajanda/pkg/index"
	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
	"github.com/harrisonrobin/ajanda/pkg/util"
)

// maxConcurrentCalls bounds in-flight Calendar API requests during SyncAll.
const maxConcurrentCalls = 4

type SyncResult int

const (
	Unchanged SyncResult = iota
	Created
	Updated
)

// CalendarClient mirrors tasks into one Google calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.ColorCache
	logger     *slog.Logger
}

// NewCalendarClient wraps srv. idx and cc may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, cc *colors.ColorCache, logger *slog.Logger) *CalendarClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, colors: cc, logger: logger}
}

// SyncEvent creates the event for src.Task or patches the existing one.
func (c *CalendarClient) SyncEvent(ctx context.Context, src util.EventSource) (*calendar.Event, SyncResult, error) {
	if src.ColorID == "" && c.colors != nil {
		src.ColorID = c.colors.GetColorID(src.Task.ProjectID)
	}
	target, err := util.ConvertTaskToCalendarEvent(src)
	if err != nil {
		return nil, Unchanged, err
	}

	existing, err := c.findEvent(ctx, src.Task.ID)
	if err != nil {
		return nil, Unchanged, fmt.Errorf("error searching for event: %w", err)
	}

	if existing != nil {
		patch, err := util.EventNeedsUpdate(existing, target)
		if err != nil {
			return nil, Unchanged, fmt.Errorf("could not compare task with its calendar event: %w", err)
		}
		c.remember(src.Task.ID, existing.Id)
		if patch == nil {
			return existing, Unchanged, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		if err != nil {
			return nil, Unchanged, err
		}
		return updated, Updated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, target).Context(ctx).Do()
	if err != nil {
		return nil, Unchanged, err
	}
	c.remember(src.Task.ID, created.Id)
	return created, Created, nil
}

// findEvent looks in the index first and falls back to searching the calendar.
func (c *CalendarClient) findEvent(ctx context.Context, taskID string) (*calendar.Event, error) {
	if c.index != nil {
		if eventID := c.index.Get(taskID); eventID != "" {
			ev, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && ev.Status != "cancelled" {
				return ev, nil
			}
			c.index.Remove(taskID)
		}
	}
	return c.GetEventByTaskID(ctx, taskID)
}

func (c *CalendarClient) remember(taskID, eventID string) {
	if c.index != nil {
		c.index.Set(taskID, eventID)
	}
}

// DeleteTaskEvent removes the event mirroring taskID, if there is one.
func (c *CalendarClient) DeleteTaskEvent(ctx context.Context, taskID string) (bool, error) {
	ev, err := c.findEvent(ctx, taskID)
	if err != nil {
		return false, err
	}
	if ev == nil {
		return false, nil
	}
	if err := c.DeleteEvent(ctx, ev.Id); err != nil {
		return false, err
	}
	if c.index != nil {
		c.index.Remove(taskID)
	}
	return true, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event. Events that are already gone are not an error.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return nil
	}
	return err
}

// ListEvents fetches events starting from timeMin.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin time.Time) ([]*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).TimeMin(timeMin.Format(time.RFC3339)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events.Items, nil
}

// GetEventByTaskID searches for the event carrying taskID in its private
// extended properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}

type SyncReport struct {
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
	Skipped   int
	Failed    int
}

func (r SyncReport) String() string {
	return fmt.Sprintf("%d created, %d updated, %d unchanged, %d deleted, %d skipped, %d failed",
		r.Created, r.Updated, r.Unchanged, r.Deleted, r.Skipped, r.Failed)
}

// hidden reports whether t or one of its ancestors is archived.
func hidden(snap *tasktree.Snapshot, t model.Task) bool {
	if t.Archived {
		return true
	}
	for _, id := range snap.AncestorIDs(t.ID) {
		if a, ok := snap.Get(id); ok && a.Archived {
			return true
		}
	}
	return false
}

// SyncAll mirrors every dated, visible task and removes the events of tasks
// that were archived, lost their dates or no longer exist. Individual
// failures are logged and counted; the index and colour cache are saved at
// the end.
func (c *CalendarClient) SyncAll(ctx context.Context, snap *tasktree.Snapshot, now time.Time) (SyncReport, error) {
	var (
		mu     sync.Mutex
		report SyncReport
	)
	count := func(f func(r *SyncReport)) {
		mu.Lock()
		f(&report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCalls)

	remove := func(taskID string) {
		g.Go(func() error {
			deleted, err := c.DeleteTaskEvent(gctx, taskID)
			switch {
			case err != nil:
				c.logger.Warn("failed to delete calendar event", "task_id", taskID, "err", err)
				count(func(r *SyncReport) { r.Failed++ })
			case deleted:
				count(func(r *SyncReport) { r.Deleted++ })
			}
			return nil
		})
	}

	live := make(map[string]bool)
	for _, t := range snap.Tasks() {
		live[t.ID] = true
		if hidden(snap, t) || (t.StartDate.IsZero() && t.DueDate.IsZero()) {
			if c.index != nil && c.index.Get(t.ID) != "" {
				remove(t.ID)
			} else {
				count(func(r *SyncReport) { r.Skipped++ })
			}
			continue
		}

		src := util.EventSource{Task: t, Progress: snap.EffectiveProgress(t.ID), Now: now}
		g.Go(func() error {
			_, res, err := c.SyncEvent(gctx, src)
			if err != nil {
				c.logger.Warn("failed to sync task", "task_id", src.Task.ID, "err", err)
				count(func(r *SyncReport) { r.Failed++ })
				return nil
			}
			count(func(r *SyncReport) {
				switch res {
				case Created:
					r.Created++
				case Updated:
					r.Updated++
				default:
					r.Unchanged++
				}
			})
			return nil
		})
	}

	if c.index != nil {
		for _, id := range c.index.TaskIDs() {
			if !live[id] {
				remove(id)
			}
		}
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if c.index != nil {
		if err := c.index.Save(); err != nil {
			return report, fmt.Errorf("failed to save event index: %w", err)
		}
	}
	if c.colors != nil {
		if err := c.colors.Save(); err != nil {
			return report, fmt.Errorf("failed to save color cache: %w", err)
		}
	}
	return report, nil
}
