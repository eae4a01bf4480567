package tasktree

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

// Sink receives every change the engine commits, in commit order.
// Implementations must not block; persistence happens behind it.
type Sink interface {
	Insert(t model.Task)
	Update(id string, p model.Patch)
	Delete(id string)
}

type nopSink struct{}

func (nopSink) Insert(model.Task)         {}
func (nopSink) Update(string, model.Patch) {}
func (nopSink) Delete(string)              {}

// Engine holds the authoritative task collection. All mutations are
// serialized; each one publishes a new Snapshot and reports its changes to
// the Sink before returning.
type Engine struct {
	mu     sync.Mutex
	snap   *Snapshot
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets where committed changes are reported. The default drops them.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDFunc(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// New seeds an engine with tasks, usually the result of a store load.
func New(tasks []model.Task, opts ...Option) *Engine {
	e := &Engine{
		snap:   NewSnapshot(tasks),
		sink:   nopSink{},
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns the current state. The result is never modified.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Replace swaps the whole collection, for example after a reload from disk.
// Nothing is reported to the sink.
func (e *Engine) Replace(tasks []model.Task) *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = NewSnapshot(tasks)
	return e.snap
}

// Create adds a new task at the end of its sibling list.
func (e *Engine) Create(d Draft) (model.Task, *Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	title := strings.TrimSpace(d.Title)
	if title == "" {
		return model.Task{}, e.snap, ErrEmptyTitle
	}
	if d.Status == "" {
		d.Status = model.StatusTodo
	}
	if !d.Status.Valid() {
		return model.Task{}, e.snap, ErrInvalidStatus
	}
	if d.Priority == "" {
		d.Priority = model.PriorityMedium
	}
	if !d.Priority.Valid() {
		return model.Task{}, e.snap, ErrInvalidPriority
	}
	if d.Progress < 0 || d.Progress > 100 {
		return model.Task{}, e.snap, ErrInvalidProgress
	}
	if d.ParentID != "" && e.snap.ptr(d.ParentID) == nil {
		return model.Task{}, e.snap, &NotFoundError{ID: d.ParentID}
	}
	if d.RepeatRule == "" {
		d.RepeatRule = model.RepeatNone
	}
	if d.Status == model.StatusDone {
		d.Progress = 100
	}

	now := e.now()
	t := model.Task{
		ID:             e.newID(),
		ParentID:       d.ParentID,
		ProjectID:      d.ProjectID,
		Title:          title,
		Description:    d.Description,
		Status:         d.Status,
		Priority:       d.Priority,
		Tags:           append([]string(nil), d.Tags...),
		StartDate:      d.StartDate,
		DueDate:        d.DueDate,
		EstimatedHours: d.EstimatedHours,
		ActualHours:    d.ActualHours,
		Progress:       d.Progress,
		RepeatRule:     d.RepeatRule,
		OrderIndex:     e.snap.nextOrderIndex(d.ParentID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	w := e.snap.clone()
	w.tasks = append(w.tasks, t)
	w.reindex()
	e.sink.Insert(t.Clone())
	e.snap = w
	e.logger.Debug("task created", "id", t.ID, "parent", t.ParentID)
	return t.Clone(), w, nil
}

// Update applies one mutation to the task with the given id.
func (e *Engine) Update(id string, m Mutation) (*Snapshot, error) {
	switch m := m.(type) {
	case Reparent:
		return e.Reparent(id, m.ParentID)
	case ArchiveToggle:
		return e.SetArchived(id, m.Archived)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.ptr(id) == nil {
		return e.snap, &NotFoundError{ID: id}
	}
	w := e.snap.clone()
	t := w.ptr(id)

	var p model.Patch
	switch m := m.(type) {
	case StatusChange:
		if !m.Status.Valid() {
			return e.snap, ErrInvalidStatus
		}
		p.Status = model.Ptr(m.Status)
		switch {
		case m.Status == model.StatusDone:
			p.Progress = model.Ptr(100)
		case t.Status == model.StatusDone:
			p.Progress = model.Ptr(0)
		}
	case ProgressChange:
		if m.Progress < 0 || m.Progress > 100 {
			return e.snap, ErrInvalidProgress
		}
		if !w.IsLeaf(id) {
			return e.snap, ErrProgressOnParent
		}
		p.Progress = model.Ptr(m.Progress)
		switch {
		case m.Progress == 100:
			p.Status = model.Ptr(model.StatusDone)
		case t.Status == model.StatusDone:
			p.Status = model.Ptr(model.StatusInProgress)
		}
	case DetailsChange:
		if m.Title != nil {
			title := strings.TrimSpace(*m.Title)
			if title == "" {
				return e.snap, ErrEmptyTitle
			}
			p.Title = &title
		}
		p.Description = m.Description
		p.ProjectID = m.ProjectID
		p.Tags = m.Tags
		p.EstimatedHours = m.EstimatedHours
		p.ActualHours = m.ActualHours
		p.RepeatRule = m.RepeatRule
	case ScheduleChange:
		p.StartDate = m.StartDate
		p.DueDate = m.DueDate
	case PriorityChange:
		if !m.Priority.Valid() {
			return e.snap, ErrInvalidPriority
		}
		p.Priority = model.Ptr(m.Priority)
	case OrderChange:
		p.OrderIndex = model.Ptr(m.OrderIndex)
	}

	if p.IsEmpty() {
		return e.snap, nil
	}
	e.apply(w, t, p)
	e.snap = w
	return w, nil
}

// SetArchived hides or restores a task. Its subtree follows implicitly since
// tree views never descend below an archived task.
func (e *Engine) SetArchived(id string, archived bool) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.ptr(id)
	if cur == nil {
		return e.snap, &NotFoundError{ID: id}
	}
	if cur.Archived == archived {
		return e.snap, nil
	}
	w := e.snap.clone()
	e.apply(w, w.ptr(id), model.Patch{Archived: model.Ptr(archived)})
	e.snap = w
	return w, nil
}

// ToggleDone flips a task between done and todo and then re-evaluates its
// ancestors.
func (e *Engine) ToggleDone(id string) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.ptr(id) == nil {
		return e.snap, &NotFoundError{ID: id}
	}
	w := e.snap.clone()
	t := w.ptr(id)
	if t.Status == model.StatusDone {
		e.apply(w, t, model.Patch{Status: model.Ptr(model.StatusTodo), Progress: model.Ptr(0)})
	} else {
		e.apply(w, t, model.Patch{Status: model.Ptr(model.StatusDone), Progress: model.Ptr(100)})
	}
	e.autoCompleteParent(w, id)
	e.snap = w
	return w, nil
}

// Reparent moves id under newParentID ("" for the root level). Both the old
// and the new parent are re-evaluated afterwards.
func (e *Engine) Reparent(id, newParentID string) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.ptr(id)
	if cur == nil {
		return e.snap, &NotFoundError{ID: id}
	}
	if newParentID == id {
		return e.snap, &CycleError{TaskID: id, ParentID: newParentID}
	}
	if newParentID != "" {
		if e.snap.ptr(newParentID) == nil {
			return e.snap, &NotFoundError{ID: newParentID}
		}
		if e.snap.isDescendant(id, newParentID) {
			return e.snap, &CycleError{TaskID: id, ParentID: newParentID}
		}
	}
	oldParentID := cur.ParentID
	if oldParentID == newParentID {
		return e.snap, nil
	}

	w := e.snap.clone()
	e.apply(w, w.ptr(id), model.Patch{ParentID: model.Ptr(newParentID)})
	w.reindex()
	e.autoCompleteParent(w, id)
	// The old parent is not re-evaluated once the move turned it into a leaf.
	if oldParentID != "" && len(w.activeChildren(oldParentID)) > 0 {
		e.reevaluate(w, oldParentID, make(map[string]bool))
	}
	e.snap = w
	return w, nil
}

// Delete removes a task together with its whole subtree. The sink sees a
// single delete for id; stores cascade to the descendants themselves.
// Deleting an unknown id is a no-op.
func (e *Engine) Delete(id string) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.ptr(id) == nil {
		return e.snap, nil
	}
	gone := map[string]bool{id: true}
	for _, d := range e.snap.DescendantIDs(id) {
		gone[d] = true
	}
	w := e.snap.clone()
	w.remove(gone)
	e.sink.Delete(id)
	e.snap = w
	e.logger.Debug("task deleted", "id", id, "removed", len(gone))
	return w, nil
}

// Rebind renames a task after the store assigned it a different id.
// Children follow. Nothing is reported to the sink.
func (e *Engine) Rebind(oldID, newID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if oldID == newID || e.snap.ptr(oldID) == nil {
		return
	}
	if e.snap.ptr(newID) != nil {
		e.logger.Warn("cannot rebind task, id already taken", "old", oldID, "new", newID)
		return
	}
	w := e.snap.clone()
	for i := range w.tasks {
		if w.tasks[i].ID == oldID {
			w.tasks[i].ID = newID
		}
		if w.tasks[i].ParentID == oldID {
			w.tasks[i].ParentID = newID
		}
	}
	w.reindex()
	e.snap = w
}

// Propagate re-runs the completion rules for the parent of id. Importers
// call it after creating tasks that are already done.
func (e *Engine) Propagate(id string) *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.ptr(id) == nil {
		return e.snap
	}
	w := e.snap.clone()
	e.autoCompleteParent(w, id)
	e.snap = w
	return w
}

// apply stamps UpdatedAt, patches t in w and reports the patch.
func (e *Engine) apply(w *Snapshot, t *model.Task, p model.Patch) {
	p.UpdatedAt = model.Ptr(e.now())
	p.Apply(t)
	e.sink.Update(t.ID, p)
}

// autoCompleteParent re-evaluates the parent of childID.
func (e *Engine) autoCompleteParent(w *Snapshot, childID string) {
	child := w.ptr(childID)
	if child == nil || child.ParentID == "" {
		return
	}
	e.reevaluate(w, child.ParentID, map[string]bool{childID: true})
}

// reevaluate completes parentID when every visible child is done, or none is
// left, and then walks on to its own parent. A done parent with unfinished
// children is reopened as in-progress and the walk stops there.
func (e *Engine) reevaluate(w *Snapshot, parentID string, seen map[string]bool) {
	for parentID != "" {
		if seen[parentID] {
			e.logger.Warn("parent chain loops, stopping completion walk", "task", parentID)
			return
		}
		seen[parentID] = true

		parent := w.ptr(parentID)
		if parent == nil {
			return
		}
		// A parent whose children are all archived counts as finished.
		allDone := true
		for _, k := range w.activeChildren(parentID) {
			if k.Status != model.StatusDone {
				allDone = false
				break
			}
		}

		if !allDone {
			if parent.Status == model.StatusDone {
				e.apply(w, parent, model.Patch{Status: model.Ptr(model.StatusInProgress), Progress: model.Ptr(0)})
				e.logger.Debug("parent reopened", "id", parentID)
			}
			return
		}
		if parent.Status != model.StatusDone || parent.Progress != 100 {
			e.apply(w, parent, model.Patch{Status: model.Ptr(model.StatusDone), Progress: model.Ptr(100)})
			e.logger.Debug("parent auto-completed", "id", parentID)
		}
		parentID = parent.ParentID
	}
}

// Convenience queries over the current snapshot.

// Get returns the task with id.
func (e *Engine) Get(id string) (model.Task, bool) { return e.Snapshot().Get(id) }

// BuildTree returns the visible tree below parentID.
func (e *Engine) BuildTree(parentID string) []Node { return e.Snapshot().BuildTree(parentID) }

// EffectiveProgress returns the aggregated progress of id.
func (e *Engine) EffectiveProgress(id string) int { return e.Snapshot().EffectiveProgress(id) }
