package reminder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

var morning = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func dueTask(id string, due model.Date) model.Task {
	return model.Task{ID: id, Title: "task " + id, Status: model.StatusTodo, DueDate: due}
}

func TestScheduleSelectsTodayAndTomorrow(t *testing.T) {
	table, err := NewTable(t.TempDir())
	require.NoError(t, err)

	doneToday := dueTask("done", model.NewDate(2025, 3, 10))
	doneToday.Status = model.StatusDone
	archivedToday := dueTask("archived", model.NewDate(2025, 3, 10))
	archivedToday.Archived = true

	table.Schedule([]model.Task{
		dueTask("today", model.NewDate(2025, 3, 10)),
		dueTask("tomorrow", model.NewDate(2025, 3, 11)),
		dueTask("later", model.NewDate(2025, 3, 12)),
		dueTask("past", model.NewDate(2025, 3, 9)),
		{ID: "undated", Title: "x", Status: model.StatusTodo},
		doneToday,
		archivedToday,
	}, morning, 9)

	require.Len(t, table.Entries, 2)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), table.Entries["today"].FireAt)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), table.Entries["tomorrow"].FireAt)
}

func TestScheduleLateFiresSoon(t *testing.T) {
	table, err := NewTable(t.TempDir())
	require.NoError(t, err)

	afternoon := morning.Add(6 * time.Hour)
	table.Schedule([]model.Task{dueTask("a", model.NewDate(2025, 3, 10))}, afternoon, 9)

	assert.Equal(t, afternoon.Add(5*time.Second), table.Entries["a"].FireAt)
}

func TestScheduleDropsStaleEntries(t *testing.T) {
	table, err := NewTable(t.TempDir())
	require.NoError(t, err)

	a := dueTask("a", model.NewDate(2025, 3, 10))
	table.Schedule([]model.Task{a}, morning, 9)
	require.Contains(t, table.Entries, "a")

	a.Status = model.StatusDone
	table.Schedule([]model.Task{a}, morning, 9)
	assert.Empty(t, table.Entries)
}

func TestSweepFiresOnce(t *testing.T) {
	table, err := NewTable(t.TempDir())
	require.NoError(t, err)

	tasks := []model.Task{
		dueTask("a", model.NewDate(2025, 3, 10)),
		dueTask("b", model.NewDate(2025, 3, 11)),
	}
	table.Schedule(tasks, morning, 9)

	assert.Empty(t, table.Sweep(morning))
	fired := table.Sweep(morning.Add(2 * time.Hour))
	require.Len(t, fired, 1)
	assert.Equal(t, "a", fired[0].TaskID)

	// A later run must not re-arm a reminder that already fired.
	table.Schedule(tasks, morning.Add(3*time.Hour), 9)
	assert.NotContains(t, table.Entries, "a")
	assert.Contains(t, table.Entries, "b")

	// Moving the due date re-arms it.
	tasks[0].DueDate = model.NewDate(2025, 3, 11)
	table.Schedule(tasks, morning.Add(3*time.Hour), 9)
	assert.Contains(t, table.Entries, "a")

	next, ok := table.Next()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), next.FireAt)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	table, err := NewTable(dir)
	require.NoError(t, err)

	table.Schedule([]model.Task{dueTask("a", model.NewDate(2025, 3, 10))}, morning, 9)
	require.NoError(t, table.Save())

	loaded, err := NewTable(dir)
	require.NoError(t, err)
	require.Contains(t, loaded.Entries, "a")
	assert.Equal(t, "2025-03-10", loaded.Entries["a"].Due.String())
	assert.True(t, loaded.Entries["a"].FireAt.Equal(table.Entries["a"].FireAt))

	// Nothing changed, so nothing is written.
	require.NoError(t, os.Remove(filepath.Join(dir, FileName)))
	require.NoError(t, loaded.Save())
	_, err = os.Stat(filepath.Join(dir, FileName))
	assert.True(t, os.IsNotExist(err))
}

func TestNewTableRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{"), 0600))

	_, err := NewTable(dir)
	assert.Error(t, err)
}
