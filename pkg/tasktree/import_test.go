package tasktree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

func TestImportNestsAndCompletesParents(t *testing.T) {
	e, _ := newEngine(t)

	created, snap, err := e.Import([]Imported{
		{Draft: Draft{Title: "Trip"}, Parent: -1},
		{Draft: Draft{Title: "Tickets", Status: model.StatusDone}, Parent: 0},
		{Draft: Draft{Title: "Hotel", Status: model.StatusDone}, Parent: 0},
		{Draft: Draft{Title: "Laundry"}, Parent: -1},
	}, "")
	require.NoError(t, err)
	require.Len(t, created, 4)

	trip := mustGet(t, snap, created[0].ID)
	assert.Equal(t, model.StatusDone, trip.Status, "all children arrived done")
	assert.Equal(t, 100, trip.Progress)
	assert.Equal(t, []string{created[1].ID, created[2].ID}, taskIDs(snap.Children(trip.ID)))
	assert.Equal(t, 1, mustGet(t, snap, created[3].ID).OrderIndex)
}

func TestImportReopensDoneParentWithOpenChild(t *testing.T) {
	e, _ := newEngine(t)

	created, snap, err := e.Import([]Imported{
		{Draft: Draft{Title: "Release", Status: model.StatusDone}, Parent: -1},
		{Draft: Draft{Title: "Changelog", Status: model.StatusDone}, Parent: 0},
		{Draft: Draft{Title: "Tag"}, Parent: 0},
	}, "")
	require.NoError(t, err)

	release := mustGet(t, snap, created[0].ID)
	assert.Equal(t, model.StatusInProgress, release.Status)
	assert.Equal(t, 0, release.Progress)
}

func TestImportUnderRoot(t *testing.T) {
	e, _ := newEngine(t, task("inbox", "", 0))

	created, snap, err := e.Import([]Imported{{Draft: Draft{Title: "a"}, Parent: -1}}, "inbox")
	require.NoError(t, err)
	assert.Equal(t, "inbox", mustGet(t, snap, created[0].ID).ParentID)
}

func TestImportStopsAtInvalidEntry(t *testing.T) {
	e, _ := newEngine(t)

	created, _, err := e.Import([]Imported{
		{Draft: Draft{Title: "ok"}, Parent: -1},
		{Draft: Draft{Title: "  "}, Parent: -1},
		{Draft: Draft{Title: "never"}, Parent: -1},
	}, "")
	require.ErrorIs(t, err, ErrEmptyTitle)
	assert.Len(t, created, 1)
	assert.Equal(t, 1, e.Snapshot().Len())

	_, _, err = e.Import([]Imported{{Draft: Draft{Title: "x"}, Parent: 3}}, "")
	assert.Error(t, err)
}
