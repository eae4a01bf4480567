package tasktree

import (
	"sort"
	"time"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

type DueClass string

const (
	DueNone     DueClass = "none"
	DueOverdue  DueClass = "overdue"
	DueToday    DueClass = "today"
	DueTomorrow DueClass = "tomorrow"
	DueSoon3    DueClass = "soon3"
	DueSoon7    DueClass = "soon7"
	DueLater    DueClass = "later"
)

// daysUntil counts calendar days from now's date to d, in now's location.
func daysUntil(d model.Date, now time.Time) int {
	today := model.DateOf(now)
	return int(d.Sub(today.Time).Hours() / 24)
}

// ClassifyDue buckets a due date relative to the calendar day of now.
func ClassifyDue(due model.Date, now time.Time) DueClass {
	if due.IsZero() {
		return DueNone
	}
	switch n := daysUntil(due, now); {
	case n < 0:
		return DueOverdue
	case n == 0:
		return DueToday
	case n == 1:
		return DueTomorrow
	case n <= 3:
		return DueSoon3
	case n <= 7:
		return DueSoon7
	default:
		return DueLater
	}
}

func (s *Snapshot) open() []*model.Task {
	var out []*model.Task
	for i := range s.tasks {
		if !s.tasks[i].Archived && !s.tasks[i].IsDone() {
			out = append(out, &s.tasks[i])
		}
	}
	return out
}

// Overdue returns open tasks whose due date is before today, oldest first.
func (s *Snapshot) Overdue(now time.Time) []model.Task {
	var out []*model.Task
	for _, t := range s.open() {
		if ClassifyDue(t.DueDate, now) == DueOverdue {
			out = append(out, t)
		}
	}
	return sortByDue(out)
}

// Today returns open tasks that are due or start today.
func (s *Snapshot) Today(now time.Time) []model.Task {
	var out []*model.Task
	for _, t := range s.open() {
		if ClassifyDue(t.DueDate, now) == DueToday || (!t.StartDate.IsZero() && daysUntil(t.StartDate, now) == 0) {
			out = append(out, t)
		}
	}
	return sortByDue(out)
}

// Upcoming returns open tasks due after today and within days.
func (s *Snapshot) Upcoming(now time.Time, days int) []model.Task {
	var out []*model.Task
	for _, t := range s.open() {
		if t.DueDate.IsZero() {
			continue
		}
		if n := daysUntil(t.DueDate, now); n > 0 && n <= days {
			out = append(out, t)
		}
	}
	return sortByDue(out)
}

func sortByDue(ts []*model.Task) []model.Task {
	sort.SliceStable(ts, func(a, b int) bool {
		return ts[a].DueDate.Before(ts[b].DueDate.Time)
	})
	return cloneAll(ts)
}
