package orgmode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

const outline = `#+TITLE: Home
#+CATEGORY: home

* Projects
** TODO [#A] Move house [1/2] :move:big:
   DEADLINE: <2025-04-01 Tue> SCHEDULED: <2025-03-15 Sat 09:00>
   :PROPERTIES:
   :ID: 1234
   :END:
   Book movers early.
*** DONE Pack books
*** NEXT Hire van
**** Notes
***** WAIT Call rental office :phone:
* TODO Water plants
* Reading list
`

func TestParseNestsByDepth(t *testing.T) {
	items, err := Parse(strings.NewReader(outline))
	require.NoError(t, err)
	require.Len(t, items, 5)

	titles := make([]string, len(items))
	parents := make([]int, len(items))
	for i, it := range items {
		titles[i] = it.Draft.Title
		parents[i] = it.Parent
	}
	assert.Equal(t, []string{"Move house", "Pack books", "Hire van", "Call rental office", "Water plants"}, titles)
	assert.Equal(t, []int{-1, 0, 0, 2, -1}, parents)
}

func TestParseHeadingFields(t *testing.T) {
	items, err := Parse(strings.NewReader(outline))
	require.NoError(t, err)

	move := items[0].Draft
	assert.Equal(t, model.StatusTodo, move.Status)
	assert.Equal(t, model.PriorityHigh, move.Priority)
	assert.Equal(t, []string{"move", "big"}, move.Tags)
	assert.Equal(t, "2025-04-01", move.DueDate.String())
	assert.Equal(t, "2025-03-15", move.StartDate.String())
	assert.Equal(t, "Book movers early.", move.Description)
	assert.Equal(t, "home", move.ProjectID)

	assert.Equal(t, model.StatusDone, items[1].Draft.Status)
	assert.Equal(t, model.StatusInProgress, items[2].Draft.Status)
	assert.Equal(t, model.StatusWaiting, items[3].Draft.Status)
	assert.Equal(t, []string{"phone"}, items[3].Draft.Tags)
	assert.Empty(t, items[1].Draft.Priority)
}

func TestParseIgnoresNonTasks(t *testing.T) {
	items, err := Parse(strings.NewReader("* Notes\nsome *bold* text\n* TODO\n* TODOS are fun\n"))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseFilesOffsetsParents(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.org")
	b := filepath.Join(dir, "b.org")
	require.NoError(t, os.WriteFile(a, []byte("* TODO one\n"), 0600))
	require.NoError(t, os.WriteFile(b, []byte("* TODO two\n** TODO three\n"), 0600))

	items, err := ParseFiles([]string{a, b})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, -1, items[1].Parent)
	assert.Equal(t, 1, items[2].Parent)

	_, err = ParseFiles([]string{filepath.Join(dir, "missing.org")})
	assert.Error(t, err)
}
