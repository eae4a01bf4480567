package reminder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

const (
	// FileName is the table's file inside the config directory.
	FileName = "reminders.json"

	// LateDelay is used for tasks whose reminder hour has already passed today.
	LateDelay = 5 * time.Second
)

type Entry struct {
	TaskID string     `json:"task_id"`
	Title  string     `json:"title"`
	Due    model.Date `json:"due"`
	FireAt time.Time  `json:"fire_at"`
}

// Table holds the pending reminders, keyed by task id.
// Fired remembers the due date each swept reminder was for, so the same
// reminder is not armed again.
type Table struct {
	Entries map[string]Entry      `json:"entries"`
	Fired   map[string]model.Date `json:"fired,omitempty"`
	Path    string                `json:"-"`
	dirty   bool
}

// NewTable opens dir/reminders.json, starting empty when it does not exist.
func NewTable(dir string) (*Table, error) {
	t := &Table{
		Path:    filepath.Join(dir, FileName),
		Entries: make(map[string]Entry),
		Fired:   make(map[string]model.Date),
	}
	if err := t.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return t, nil
}

func (t *Table) Load() error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return fmt.Errorf("failed to decode reminders %s: %w", t.Path, err)
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	if t.Fired == nil {
		t.Fired = make(map[string]model.Date)
	}
	return nil
}

// Save writes the table if it changed since the last load or save.
func (t *Table) Save() error {
	if !t.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp := t.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, t.Path); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// fireTime is hour:00 on the due date, or shortly after now when that moment
// has already passed.
func fireTime(due model.Date, now time.Time, hour int) time.Time {
	at := due.Midnight(now.Location()).Add(time.Duration(hour) * time.Hour)
	if at.Before(now) {
		return now.Add(LateDelay)
	}
	return at
}

// Schedule keeps one entry per open task due today or tomorrow and drops
// every other entry. Tasks whose reminder already fired for their current
// due date are skipped. An entry whose fire time is unchanged is left alone so
// a reminder is not re-armed on every run.
func (t *Table) Schedule(tasks []model.Task, now time.Time, hour int) {
	today := model.DateOf(now)
	tomorrow := model.DateOf(now.AddDate(0, 0, 1))

	want := make(map[string]bool)
	for _, task := range tasks {
		if task.Archived || task.IsDone() || task.DueDate.IsZero() {
			continue
		}
		if !task.DueDate.Equal(today.Time) && !task.DueDate.Equal(tomorrow.Time) {
			continue
		}
		want[task.ID] = true
		if fired, ok := t.Fired[task.ID]; ok && fired.Equal(task.DueDate.Time) {
			continue
		}

		old, exists := t.Entries[task.ID]
		if exists && old.Due.Equal(task.DueDate.Time) {
			if old.Title != task.Title {
				old.Title = task.Title
				t.Entries[task.ID] = old
				t.dirty = true
			}
			continue
		}
		t.Entries[task.ID] = Entry{
			TaskID: task.ID,
			Title:  task.Title,
			Due:    task.DueDate,
			FireAt: fireTime(task.DueDate, now, hour),
		}
		t.dirty = true
	}

	for id := range t.Entries {
		if !want[id] {
			t.Remove(id)
		}
	}
	for id := range t.Fired {
		if !want[id] {
			delete(t.Fired, id)
			t.dirty = true
		}
	}
}

func (t *Table) Remove(taskID string) {
	if _, exists := t.Entries[taskID]; exists {
		delete(t.Entries, taskID)
		t.dirty = true
	}
}

// Sweep returns the entries due to fire at now, earliest first, and removes them.
func (t *Table) Sweep(now time.Time) []Entry {
	var swept []Entry
	for id, entry := range t.Entries {
		if !entry.FireAt.After(now) {
			swept = append(swept, entry)
			delete(t.Entries, id)
			t.Fired[id] = entry.Due
			t.dirty = true
		}
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].FireAt.Before(swept[j].FireAt) })
	return swept
}

// Next returns the earliest pending entry.
func (t *Table) Next() (Entry, bool) {
	var (
		next  Entry
		found bool
	)
	for _, e := range t.Entries {
		if !found || e.FireAt.Before(next.FireAt) {
			next, found = e, true
		}
	}
	return next, found
}
