package tasktree

import (
	"fmt"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

// Imported is one task read from an external source. Parent indexes an
// earlier entry of the same batch; a negative Parent places the task under
// the batch root.
type Imported struct {
	Draft  Draft
	Parent int
}

// Import creates a batch of tasks under rootID ("" for the top level).
// Entries are created in order through Create, so sibling ordering follows
// the source. Completion rules then run for every entry that arrived done.
// Import stops at the first entry that fails validation; tasks created before
// it are kept.
func (e *Engine) Import(items []Imported, rootID string) ([]model.Task, *Snapshot, error) {
	created := make([]model.Task, 0, len(items))
	snap := e.Snapshot()
	for i, it := range items {
		d := it.Draft
		switch {
		case it.Parent < 0:
			d.ParentID = rootID
		case it.Parent < i:
			d.ParentID = created[it.Parent].ID
		default:
			return created, snap, fmt.Errorf("entry %d refers to parent %d which is not an earlier entry", i, it.Parent)
		}

		t, s, err := e.Create(d)
		if err != nil {
			return created, snap, fmt.Errorf("failed to import %q: %w", d.Title, err)
		}
		created = append(created, t)
		snap = s
	}

	for _, t := range created {
		if t.Status == model.StatusDone {
			snap = e.Propagate(t.ID)
		}
	}
	return created, snap, nil
}
