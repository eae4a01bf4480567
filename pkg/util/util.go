package util

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

// TaskIDProperty is the private extended property that ties an event to a task.
const TaskIDProperty = "ajanda_id"

const (
	prefixDone       = "✓"
	prefixInProgress = "‣"
	prefixOverdue    = "!"
)

var (
	durationPart = regexp.MustCompile(`(\d+)([DHMS])`)
	taskIDLine   = regexp.MustCompile(`(?m)^ID: ([A-Za-z0-9\-]+)$`)
)

// ParseDuration parses the ISO 8601 durations Taskwarrior exports
// (P1D, PT1H30M, P1DT2H).
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}

	datePart, timePart, hasTime := strings.Cut(s[1:], "T")
	if hasTime && timePart == "" {
		return 0, fmt.Errorf("invalid ISO 8601 duration (empty time part): %s", s)
	}

	var total time.Duration
	for _, m := range durationPart.FindAllStringSubmatch(datePart, -1) {
		if m[2] != "D" {
			return 0, fmt.Errorf("invalid ISO 8601 duration (unit %s before T): %s", m[2], s)
		}
		v, _ := strconv.Atoi(m[1])
		total += time.Duration(v) * 24 * time.Hour
	}
	for _, m := range durationPart.FindAllStringSubmatch(timePart, -1) {
		v, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "H":
			total += time.Duration(v) * time.Hour
		case "M":
			total += time.Duration(v) * time.Minute
		case "S":
			total += time.Duration(v) * time.Second
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
	}
	return total, nil
}

// EventSource is everything needed to render one task as an event.
type EventSource struct {
	Task     model.Task
	Progress int    // effective progress of the task's subtree
	ColorID  string // Google Calendar colour id, "" for the calendar default
	Now      time.Time
}

func summaryPrefix(t model.Task, now time.Time) string {
	switch {
	case t.Status == model.StatusDone:
		return prefixDone
	case t.Status == model.StatusInProgress:
		return prefixInProgress
	case !t.DueDate.IsZero() && t.DueDate.Before(model.DateOf(now).Time):
		return prefixOverdue
	}
	return ""
}

func hours(h float64) time.Duration {
	return time.Duration(math.Round(h * float64(time.Hour)))
}

// ConvertTaskToCalendarEvent renders a task as an all-day event spanning its
// start date (or due date) through its due date.
func ConvertTaskToCalendarEvent(src EventSource) (*calendar.Event, error) {
	task := src.Task
	if task.ID == "" {
		return nil, fmt.Errorf("could not convert task without an id")
	}

	start, end := task.StartDate, task.DueDate
	switch {
	case start.IsZero() && end.IsZero():
		return nil, fmt.Errorf("task has no start or due date: %s", task.ID)
	case start.IsZero():
		start = end
	case end.IsZero() || end.Before(start.Time):
		end = start
	}
	// All-day end dates are exclusive.
	endExclusive := model.DateOf(end.AddDate(0, 0, 1))

	summary := task.Title
	if prefix := summaryPrefix(task, src.Now); prefix != "" {
		summary = prefix + " " + task.Title
	}

	var desc strings.Builder
	if len(task.Tags) > 0 {
		for _, tag := range task.Tags {
			fmt.Fprintf(&desc, "#%s ", tag)
		}
		desc.WriteString("\n\n")
	}
	if task.Description != "" {
		desc.WriteString(task.Description)
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Status: %s\n", task.Status)
	fmt.Fprintf(&desc, "Priority: %s\n", task.Priority)
	if task.ProjectID != "" {
		fmt.Fprintf(&desc, "Project: %s\n", task.ProjectID)
	}
	fmt.Fprintf(&desc, "Progress: %d%%\n", src.Progress)
	fmt.Fprintf(&desc, "ID: %s\n", task.ID)

	est, spent := hours(task.EstimatedHours), hours(task.ActualHours)
	if est > 0 || spent > 0 {
		desc.WriteString("\nAccounting:\n")
		if est > 0 {
			fmt.Fprintf(&desc, "• estimated: %s\n", est)
		}
		if spent > 0 {
			fmt.Fprintf(&desc, "• spent: %s\n", spent)
			if est > 0 {
				if diff := spent - est; diff > 0 {
					fmt.Fprintf(&desc, "• over estimate by: %s\n", diff)
				} else if diff < 0 {
					fmt.Fprintf(&desc, "• under estimate by: %s\n", -diff)
				}
			}
		}
	}

	return &calendar.Event{
		Summary:     summary,
		Description: desc.String(),
		ColorId:     src.ColorID,
		Start:       &calendar.EventDateTime{Date: start.String()},
		End:         &calendar.EventDateTime{Date: endExclusive.String()},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: task.ID},
		},
	}, nil
}

// eventDay returns the calendar day an event boundary falls on, whether it
// is an all-day date or a timestamp.
func eventDay(dt *calendar.EventDateTime) (string, error) {
	if dt == nil {
		return "", nil
	}
	if dt.Date != "" {
		return dt.Date, nil
	}
	if dt.DateTime == "" {
		return "", nil
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

// EventNeedsUpdate returns a patch holding the fields of target that differ
// from existing, or nil when the event is already up to date.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	existingStart, err := eventDay(existing.Start)
	if err != nil {
		return nil, err
	}
	existingEnd, err := eventDay(existing.End)
	if err != nil {
		return nil, err
	}
	// A timed event is converted to all-day even when the day matches.
	timed := existing.Start != nil && existing.Start.DateTime != ""
	if timed || existingStart != target.Start.Date || existingEnd != target.End.Date {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

// GetTaskIDFromEventDescription finds the "ID: ..." line written by
// ConvertTaskToCalendarEvent.
func GetTaskIDFromEventDescription(description string) (string, bool) {
	m := taskIDLine.FindStringSubmatch(description)
	if len(m) > 1 {
		return m[1], true
	}
	return "", false
}

// TaskIDOf returns the task id stored on an event, falling back to its description.
func TaskIDOf(ev *calendar.Event) (string, bool) {
	if ev == nil {
		return "", false
	}
	if ev.ExtendedProperties != nil {
		if id := ev.ExtendedProperties.Private[TaskIDProperty]; id != "" {
			return id, true
		}
	}
	return GetTaskIDFromEventDescription(ev.Description)
}
