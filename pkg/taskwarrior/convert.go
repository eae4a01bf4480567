package taskwarrior

import (
	"fmt"
	"strings"

	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
	"github.com/harrisonrobin/ajanda/pkg/util"
)

// ToDraft maps a Taskwarrior task onto a draft. ok is false for tasks that
// should not be imported (deleted ones and recurrence templates).
func ToDraft(t Task) (d tasktree.Draft, ok bool, err error) {
	switch t.Status {
	case DELETED, RECURRING:
		return tasktree.Draft{}, false, nil
	}

	d = tasktree.Draft{
		Title:     t.Description,
		ProjectID: t.Project,
		Tags:      append([]string(nil), t.Tags...),
	}

	switch t.Status {
	case COMPLETED:
		d.Status = model.StatusDone
	case WAITING:
		d.Status = model.StatusWaiting
	case PENDING, "":
		d.Status = model.StatusTodo
		if t.Start.isSet() {
			d.Status = model.StatusInProgress
		}
	default:
		return tasktree.Draft{}, false, fmt.Errorf("task %s: unknown status %q", t.UUID, t.Status)
	}

	if d.Priority, err = model.ParsePriority(t.Priority); err != nil {
		return tasktree.Draft{}, false, fmt.Errorf("task %s: %w", t.UUID, err)
	}

	if t.Due.isSet() {
		d.DueDate = model.DateOf(t.Due.Local())
	}
	switch {
	case t.Scheduled.isSet():
		d.StartDate = model.DateOf(t.Scheduled.Local())
	case t.Start.isSet():
		d.StartDate = model.DateOf(t.Start.Local())
	}

	if t.Est != "" {
		est, err := util.ParseDuration(t.Est)
		if err != nil {
			return tasktree.Draft{}, false, fmt.Errorf("task %s: %w", t.UUID, err)
		}
		d.EstimatedHours = est.Hours()
	}
	if t.Act != "" {
		act, err := util.ParseDuration(t.Act)
		if err != nil {
			return tasktree.Draft{}, false, fmt.Errorf("task %s: %w", t.UUID, err)
		}
		d.ActualHours = act.Hours()
	}

	switch t.Recur {
	case "daily", "day":
		d.RepeatRule = model.RepeatDaily
	case "weekly", "week":
		d.RepeatRule = model.RepeatWeekly
	case "monthly", "month":
		d.RepeatRule = model.RepeatMonthly
	}

	if len(t.Annotations) > 0 {
		notes := make([]string, 0, len(t.Annotations))
		for _, a := range t.Annotations {
			notes = append(notes, a.Description)
		}
		d.Description = strings.Join(notes, "\n")
	}
	return d, true, nil
}

// Drafts converts an export into a flat import batch. Taskwarrior has no
// sub-tasks, so every entry lands under the batch root.
func Drafts(tasks []Task) ([]tasktree.Imported, error) {
	items := make([]tasktree.Imported, 0, len(tasks))
	for _, t := range tasks {
		d, ok, err := ToDraft(t)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, tasktree.Imported{Draft: d, Parent: -1})
		}
	}
	return items, nil
}
