package planning

import "errors"

// Planning domain errors.
var (
	// ErrSessionNotFound indicates no open or archived session has the given ID.
	ErrSessionNotFound = errors.New("planning session not found")

	// ErrSessionArchived indicates the session is in history and cannot change.
	ErrSessionArchived = errors.New("planning session is archived")

	// ErrTaskNotFound indicates the task does not exist in the session.
	ErrTaskNotFound = errors.New("task not found in session")

	// ErrInvalidTransition indicates the requested status transition is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCyclicDependency indicates the task graph contains a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrOrphanDependency indicates a task depends on an ID outside the session.
	ErrOrphanDependency = errors.New("dependency references unknown task")

	// ErrInvalidTimeframe indicates a timeframe string could not be parsed.
	ErrInvalidTimeframe = errors.New("invalid timeframe")
)

// TransitionError provides details about an invalid lifecycle transition.
type TransitionError struct {
	TaskID     string
	FromStatus TaskStatus
	Event      string
}

func (e *TransitionError) Error() string {
	return "cannot apply '" + e.Event + "' to task " + e.TaskID + " in status " + string(e.FromStatus)
}

// Is allows errors.Is to match ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// DependencyError names the edge that broke graph validation.
type DependencyError struct {
	TaskID       string
	DependencyID string
	Err          error
}

func (e *DependencyError) Error() string {
	return e.Err.Error() + ": " + e.TaskID + " -> " + e.DependencyID
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
