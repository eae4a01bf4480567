package tasktree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

func withStatus(t model.Task, s model.Status) model.Task {
	t.Status = s
	return t
}

func due(t model.Task, d model.Date) model.Task {
	t.DueDate = d
	return t
}

func TestKanbanColumns(t *testing.T) {
	s := NewSnapshot([]model.Task{
		withStatus(task("w", "", 3), model.StatusWaiting),
		task("t2", "", 2),
		task("t1", "", 1),
		withStatus(task("p", "", 0), model.StatusInProgress),
		done(task("d", "", 4)),
		task("child", "t1", 0),
		archived(task("gone", "", 5)),
	})

	cols := s.Kanban()
	require.Len(t, cols, 4)
	assert.Equal(t, model.StatusTodo, cols[0].Status)
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(cols[0].Tasks))
	assert.Equal(t, []string{"p"}, taskIDs(cols[1].Tasks))
	assert.Equal(t, []string{"w"}, taskIDs(cols[2].Tasks))
	assert.Equal(t, []string{"d"}, taskIDs(cols[3].Tasks))
}

func TestRowsFlattenDepthFirst(t *testing.T) {
	s := NewSnapshot([]model.Task{
		task("a", "", 0),
		done(task("a1", "a", 0)),
		task("a2", "a", 1),
		task("a2x", "a2", 0),
		task("b", "", 1),
	})

	rows := s.Rows("")
	require.Len(t, rows, 5)

	var got []string
	for _, r := range rows {
		got = append(got, r.Task.ID)
	}
	assert.Equal(t, []string{"a", "a1", "a2", "a2x", "b"}, got)

	assert.Equal(t, 0, rows[0].Depth)
	assert.Equal(t, 2, rows[0].Children)
	assert.Equal(t, 1, rows[0].DoneChildren)
	assert.Equal(t, 50, rows[0].Progress)
	assert.Equal(t, 2, rows[3].Depth)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, 0, NewSnapshot(nil).Summary())

	s := NewSnapshot([]model.Task{
		done(task("a", "", 0)),
		task("b", "", 1),
		task("c", "", 2),
		done(task("a1", "a", 0)),
	})
	assert.Equal(t, 33, s.Summary())
}

func TestClassifyDue(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		due  model.Date
		want DueClass
	}{
		{model.Date{}, DueNone},
		{model.NewDate(2025, 3, 9), DueOverdue},
		{model.NewDate(2025, 3, 10), DueToday},
		{model.NewDate(2025, 3, 11), DueTomorrow},
		{model.NewDate(2025, 3, 13), DueSoon3},
		{model.NewDate(2025, 3, 17), DueSoon7},
		{model.NewDate(2025, 3, 18), DueLater},
	}
	for _, tt := range tests {
		if got := ClassifyDue(tt.due, now); got != tt.want {
			t.Errorf("ClassifyDue(%s): expected %s, got %s", tt.due, tt.want, got)
		}
	}
}

func TestAgendaQueries(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	starts := task("starts", "", 4)
	starts.StartDate = model.NewDate(2025, 3, 10)

	s := NewSnapshot([]model.Task{
		due(task("late2", "", 0), model.NewDate(2025, 3, 8)),
		due(task("late1", "", 1), model.NewDate(2025, 3, 1)),
		due(done(task("lateDone", "", 2)), model.NewDate(2025, 3, 1)),
		due(task("today", "", 3), model.NewDate(2025, 3, 10)),
		starts,
		due(task("soon", "", 5), model.NewDate(2025, 3, 12)),
		due(task("far", "", 6), model.NewDate(2025, 4, 1)),
		due(archived(task("hidden", "", 7)), model.NewDate(2025, 3, 11)),
	})

	assert.Equal(t, []string{"late1", "late2"}, taskIDs(s.Overdue(now)))
	assert.ElementsMatch(t, []string{"today", "starts"}, taskIDs(s.Today(now)))
	assert.Equal(t, []string{"soon"}, taskIDs(s.Upcoming(now, 7)))
	assert.Equal(t, []string{"soon", "far"}, taskIDs(s.Upcoming(now, 30)))
}

func taskIDs(ts []model.Task) []string {
	var out []string
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
