package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusWaiting    Status = "waiting"
	StatusDone       Status = "done"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusWaiting, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusWaiting, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority accepts the names plus the org-mode style letters A, B and C.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "h", "a":
		return PriorityHigh, nil
	case "medium", "m", "b", "":
		return PriorityMedium, nil
	case "low", "l", "c":
		return PriorityLow, nil
	}
	return "", fmt.Errorf("invalid priority %q: must be low, medium or high", s)
}

type RepeatRule string

const (
	RepeatNone    RepeatRule = "none"
	RepeatDaily   RepeatRule = "daily"
	RepeatWeekly  RepeatRule = "weekly"
	RepeatMonthly RepeatRule = "monthly"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day. The zero value means "no date".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping its calendar day in t's location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("failed to parse date '%s': %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Midnight returns the start of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// UnmarshalJSON implements the json.Unmarshaler interface for Date.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	// Full timestamps are accepted so records written by other clients still load.
	if len(s) > len(dateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("failed to parse date '%s': %w", s, err)
		}
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Value stores the zero date as NULL.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(dateLayout), nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

// Task is a unit of work. Tasks form a forest through ParentID.
type Task struct {
	ID             string     `json:"id" yaml:"id"`
	ParentID       string     `json:"parentId,omitempty" yaml:"parent_id,omitempty"`
	ProjectID      string     `json:"projectId,omitempty" yaml:"project_id,omitempty"`
	Title          string     `json:"title" yaml:"title"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status         Status     `json:"status" yaml:"status"`
	Priority       Priority   `json:"priority" yaml:"priority"`
	Tags           []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	StartDate      Date       `json:"startDate" yaml:"start_date,omitempty"`
	DueDate        Date       `json:"dueDate" yaml:"due_date,omitempty"`
	EstimatedHours float64    `json:"estimatedHours,omitempty" yaml:"estimated_hours,omitempty"`
	ActualHours    float64    `json:"actualHours,omitempty" yaml:"actual_hours,omitempty"`
	Progress       int        `json:"progress" yaml:"progress"`
	RepeatRule     RepeatRule `json:"repeatRule,omitempty" yaml:"repeat_rule,omitempty"`
	Archived       bool       `json:"archived" yaml:"archived"`
	OrderIndex     int        `json:"orderIndex" yaml:"order_index"`
	CreatedAt      time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" yaml:"updated_at"`
}

func (t Task) IsRoot() bool { return t.ParentID == "" }

func (t Task) IsDone() bool { return t.Status == StatusDone }

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	return t
}

// Patch is a field-level partial update. Nil fields are left untouched.
// A ParentID pointing at "" promotes the task to a root; a zero Date clears it.
type Patch struct {
	Title          *string     `json:"title,omitempty"`
	Description    *string     `json:"description,omitempty"`
	Status         *Status     `json:"status,omitempty"`
	Priority       *Priority   `json:"priority,omitempty"`
	Progress       *int        `json:"progress,omitempty"`
	ParentID       *string     `json:"parentId,omitempty"`
	ProjectID      *string     `json:"projectId,omitempty"`
	Tags           *[]string   `json:"tags,omitempty"`
	StartDate      *Date       `json:"startDate,omitempty"`
	DueDate        *Date       `json:"dueDate,omitempty"`
	EstimatedHours *float64    `json:"estimatedHours,omitempty"`
	ActualHours    *float64    `json:"actualHours,omitempty"`
	RepeatRule     *RepeatRule `json:"repeatRule,omitempty"`
	Archived       *bool       `json:"archived,omitempty"`
	OrderIndex     *int        `json:"orderIndex,omitempty"`
	UpdatedAt      *time.Time  `json:"updatedAt,omitempty"`
}

// Apply copies every set field of p onto t.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.ParentID != nil {
		t.ParentID = *p.ParentID
	}
	if p.ProjectID != nil {
		t.ProjectID = *p.ProjectID
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.ActualHours != nil {
		t.ActualHours = *p.ActualHours
	}
	if p.RepeatRule != nil {
		t.RepeatRule = *p.RepeatRule
	}
	if p.Archived != nil {
		t.Archived = *p.Archived
	}
	if p.OrderIndex != nil {
		t.OrderIndex = *p.OrderIndex
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
}

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
