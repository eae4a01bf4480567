package util

import (
	"strings"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

var now = time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC)

func TestConvertTaskToCalendarEvent(t *testing.T) {
	task := model.Task{
		ID:             "12345678-1234-1234-1234-123456789012",
		Title:          "Test Task",
		Status:         model.StatusTodo,
		Priority:       model.PriorityHigh,
		ProjectID:      "Work",
		Tags:           []string{"buy", "food"},
		DueDate:        model.NewDate(2023, 1, 12),
		EstimatedHours: 1.5,
		ActualHours:    2,
	}

	event, err := ConvertTaskToCalendarEvent(EventSource{Task: task, Progress: 40, ColorID: "3", Now: now})
	if err != nil {
		t.Fatalf("ConvertTaskToCalendarEvent failed: %v", err)
	}

	if event.ExtendedProperties == nil || event.ExtendedProperties.Private == nil {
		t.Fatal("ExtendedProperties or Private map is nil")
	}
	if val := event.ExtendedProperties.Private[TaskIDProperty]; val != task.ID {
		t.Errorf("Expected %s %s, got %v", TaskIDProperty, task.ID, val)
	}
	if event.Summary != "Test Task" {
		t.Errorf("Expected summary without prefix, got %q", event.Summary)
	}
	if event.Start.Date != "2023-01-12" || event.End.Date != "2023-01-13" {
		t.Errorf("Expected all-day event on 2023-01-12, got %s..%s", event.Start.Date, event.End.Date)
	}
	if event.ColorId != "3" {
		t.Errorf("Expected color 3, got %s", event.ColorId)
	}

	for _, want := range []string{"#buy #food", "Progress: 40%", "Project: Work", "Accounting:", "• over estimate by: 30m0s"} {
		if !strings.Contains(event.Description, want) {
			t.Errorf("Expected description to contain %q, got: %s", want, event.Description)
		}
	}
	if id, ok := GetTaskIDFromEventDescription(event.Description); !ok || id != task.ID {
		t.Errorf("Expected to recover id %s from description, got %q", task.ID, id)
	}
}

func TestConvertTaskSpansStartToDue(t *testing.T) {
	task := model.Task{
		ID:        "a",
		Title:     "Trip",
		Status:    model.StatusInProgress,
		StartDate: model.NewDate(2023, 1, 9),
		DueDate:   model.NewDate(2023, 1, 11),
	}

	event, err := ConvertTaskToCalendarEvent(EventSource{Task: task, Now: now})
	if err != nil {
		t.Fatal(err)
	}
	if event.Start.Date != "2023-01-09" || event.End.Date != "2023-01-12" {
		t.Errorf("Expected 2023-01-09..2023-01-12, got %s..%s", event.Start.Date, event.End.Date)
	}
	if event.Summary != "‣ Trip" {
		t.Errorf("Expected in-progress prefix, got %q", event.Summary)
	}
}

func TestSummaryPrefixes(t *testing.T) {
	tests := []struct {
		status model.Status
		due    model.Date
		want   string
	}{
		{model.StatusDone, model.NewDate(2023, 1, 1), "✓ x"},
		{model.StatusTodo, model.NewDate(2023, 1, 9), "! x"},
		{model.StatusWaiting, model.NewDate(2023, 1, 10), "x"},
	}
	for _, tt := range tests {
		event, err := ConvertTaskToCalendarEvent(EventSource{
			Task: model.Task{ID: "a", Title: "x", Status: tt.status, DueDate: tt.due},
			Now:  now,
		})
		if err != nil {
			t.Fatal(err)
		}
		if event.Summary != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, event.Summary)
		}
	}
}

func TestConvertTaskWithoutDates(t *testing.T) {
	_, err := ConvertTaskToCalendarEvent(EventSource{Task: model.Task{ID: "a", Title: "x"}, Now: now})
	if err == nil {
		t.Error("Expected error for task without dates, got nil")
	}
}

func TestEventNeedsUpdate(t *testing.T) {
	target, err := ConvertTaskToCalendarEvent(EventSource{
		Task: model.Task{ID: "a", Title: "x", Status: model.StatusTodo, DueDate: model.NewDate(2023, 1, 12)},
		Now:  now,
	})
	if err != nil {
		t.Fatal(err)
	}

	same := *target
	patch, err := EventNeedsUpdate(&same, target)
	if err != nil {
		t.Fatal(err)
	}
	if patch != nil {
		t.Errorf("Expected no patch for identical events, got %+v", patch)
	}

	moved := *target
	moved.Start = &calendar.EventDateTime{Date: "2023-01-11"}
	moved.End = &calendar.EventDateTime{Date: "2023-01-12"}
	patch, err = EventNeedsUpdate(&moved, target)
	if err != nil {
		t.Fatal(err)
	}
	if patch == nil || patch.Start.Date != "2023-01-12" || patch.Summary != "" {
		t.Errorf("Expected a date-only patch, got %+v", patch)
	}

	timed := *target
	timed.Start = &calendar.EventDateTime{DateTime: "2023-01-12T09:00:00Z"}
	timed.End = &calendar.EventDateTime{DateTime: "2023-01-12T09:30:00Z"}
	patch, err = EventNeedsUpdate(&timed, target)
	if err != nil {
		t.Fatal(err)
	}
	if patch == nil || patch.Start.Date != "2023-01-12" {
		t.Errorf("Expected timed event to be converted to all-day, got %+v", patch)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"PT1H", time.Hour, false},
		{"PT1H30M", 90 * time.Minute, false},
		{"P1D", 24 * time.Hour, false},
		{"P1DT2H", 26 * time.Hour, false},
		{"PT", 0, true},
		{"1H", 0, true},
		{"P1H", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q): expected error %v, got %v", tt.in, tt.wantErr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestTaskIDOf(t *testing.T) {
	ev := &calendar.Event{Description: "Status: todo\nID: abc-123\n"}
	if id, ok := TaskIDOf(ev); !ok || id != "abc-123" {
		t.Errorf("Expected abc-123 from description, got %q", id)
	}
	ev.ExtendedProperties = &calendar.EventExtendedProperties{Private: map[string]string{TaskIDProperty: "xyz"}}
	if id, _ := TaskIDOf(ev); id != "xyz" {
		t.Errorf("Expected property to win, got %q", id)
	}
}
