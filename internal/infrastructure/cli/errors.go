package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/taskforge/pkg/application"
	"github.com/felixgeelhaar/taskforge/pkg/domain/events"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
	"github.com/felixgeelhaar/taskforge/pkg/domain/strategy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var verr *application.ValidationError
	if errors.As(err, &verr) {
		if verr.Cause != nil {
			return NewCLIError("planning context could not be validated", "Check validation.plugin or raise validation.timeout", err)
		}
		return NewCLIError("planning context rejected", "Remove the flagged content and run 'taskforge validate' to check it", err)
	}

	var transErr *planning.TransitionError
	if errors.As(err, &transErr) {
		return NewCLIError(
			transErr.Error(),
			fmt.Sprintf("Task '%s' is '%s'; only events valid from that status apply", transErr.TaskID, transErr.FromStatus),
			err,
		)
	}

	var depErr *planning.DependencyError
	if errors.As(err, &depErr) {
		return NewCLIError(depErr.Error(), fmt.Sprintf("Review the dependencies of task '%s'", depErr.TaskID), err)
	}

	switch {
	case errors.Is(err, application.ErrEmptyObjective):
		return NewCLIError("no objective given", "Pass --objective or an objective in the --context file", err)
	case errors.Is(err, planning.ErrSessionNotFound):
		return NewCLIError("planning session not found", "Sessions live for one invocation; plan and replan in the same command", err)
	case errors.Is(err, planning.ErrSessionArchived):
		return NewCLIError("planning session is archived", "Archived sessions are read-only; replan from the active session", err)
	case errors.Is(err, planning.ErrInvalidUrgency):
		return NewCLIError("invalid urgency", "Use one of low, medium, high, critical", err)
	case errors.Is(err, worker.ErrDuplicateWorker):
		return NewCLIError("duplicate worker", "Worker IDs in the workers file must be unique", err)
	case errors.Is(err, worker.ErrInvalidAvailability), errors.Is(err, worker.ErrWorkloadOutOfRange), errors.Is(err, worker.ErrMissingID):
		return NewCLIError("invalid worker profile", "Fix the workers file named by registry.workers_file", err)
	case errors.Is(err, strategy.ErrInvalidStrategy), errors.Is(err, strategy.ErrDuplicateStrategy):
		return NewCLIError("invalid strategy catalog", "Fix the file named by catalog.strategies_file", err)
	case errors.Is(err, events.ErrChainBroken):
		return NewCLIError("audit log integrity check failed", "The audit file was modified outside taskforge; restore it from backup", err)
	}

	return err
}
