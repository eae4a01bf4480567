package tasktree

import "github.com/harrisonrobin/ajanda/pkg/model"

// Draft describes a task to create. Zero values take the defaults:
// status todo, priority medium, progress 0.
type Draft struct {
	ParentID       string
	ProjectID      string
	Title          string
	Description    string
	Status         model.Status
	Priority       model.Priority
	Tags           []string
	StartDate      model.Date
	DueDate        model.Date
	EstimatedHours float64
	ActualHours    float64
	Progress       int
	RepeatRule     model.RepeatRule
}

// Mutation is one of the edits Engine.Update understands.
type Mutation interface {
	isMutation()
}

// StatusChange sets the status. Moving to done sets progress to 100 and
// moving away from done resets it to 0. Parents are not re-evaluated.
type StatusChange struct {
	Status model.Status
}

// ProgressChange sets the stored progress of a task without visible sub-tasks.
// 100 marks the task done; dropping below 100 on a done task reopens it.
type ProgressChange struct {
	Progress int
}

// DetailsChange edits descriptive fields. Nil fields are left alone.
type DetailsChange struct {
	Title          *string
	Description    *string
	ProjectID      *string
	Tags           *[]string
	EstimatedHours *float64
	ActualHours    *float64
	RepeatRule     *model.RepeatRule
}

// ScheduleChange edits dates. A zero Date clears the field.
type ScheduleChange struct {
	StartDate *model.Date
	DueDate   *model.Date
}

type PriorityChange struct {
	Priority model.Priority
}

// OrderChange sets the position of a task among its siblings.
type OrderChange struct {
	OrderIndex int
}

// Reparent moves a task under ParentID, or to the root level when it is empty.
type Reparent struct {
	ParentID string
}

type ArchiveToggle struct {
	Archived bool
}

func (StatusChange) isMutation()   {}
func (ProgressChange) isMutation() {}
func (DetailsChange) isMutation()  {}
func (ScheduleChange) isMutation() {}
func (PriorityChange) isMutation() {}
func (OrderChange) isMutation()    {}
func (Reparent) isMutation()       {}
func (ArchiveToggle) isMutation()  {}
