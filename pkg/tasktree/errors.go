package tasktree

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTitle       = errors.New("title is required")
	ErrInvalidStatus    = errors.New("invalid status: must be todo, in-progress, waiting or done")
	ErrInvalidPriority  = errors.New("invalid priority: must be low, medium or high")
	ErrInvalidProgress  = errors.New("progress must be between 0 and 100")
	ErrProgressOnParent = errors.New("progress is derived for tasks with sub-tasks and cannot be set")
)

// CycleError is returned when a move would make a task its own ancestor.
type CycleError struct {
	TaskID   string
	ParentID string
}

func (e *CycleError) Error() string {
	if e.TaskID == e.ParentID {
		return fmt.Sprintf("cannot move task %s under itself", e.TaskID)
	}
	return fmt.Sprintf("cannot move task %s under its own descendant %s", e.TaskID, e.ParentID)
}

// NotFoundError is returned when a mutation names a task that is not in the collection.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.ID)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
