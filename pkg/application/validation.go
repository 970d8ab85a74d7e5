package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
)

var (
	// ErrContextRejected is the single fatal outcome of the pipeline: the
	// policy validator refused the planning context.
	ErrContextRejected = errors.New("planning context rejected by policy")

	ErrEmptyObjective = errors.New("objective is required")

	// ErrStaleNarrative reports a replan narrative dropped because the
	// session kept changing while it was generated.
	ErrStaleNarrative = errors.New("replan narrative describes an earlier session state")
)

// ValidationError describes a rejected planning context.
type ValidationError struct {
	Verdict policy.Verdict
	// Cause is set when the validator failed or timed out rather than
	// returning a negative verdict.
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: validator unavailable: %v", ErrContextRejected, e.Cause)
	}
	if len(e.Verdict.Violations) == 0 {
		return fmt.Sprintf("%s (score %.0f)", ErrContextRejected, e.Verdict.Score)
	}
	msgs := make([]string, len(e.Verdict.Violations))
	for i, v := range e.Verdict.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("%s: %s", ErrContextRejected, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrContextRejected
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// validateWithin runs the validator under a deadline. A zero limit leaves
// the caller's context in charge.
func validateWithin(ctx context.Context, v policy.Validator, limit time.Duration, content, purpose string) (policy.Verdict, error) {
	if limit <= 0 {
		return v.Validate(ctx, content, purpose)
	}
	t := timeout.New[policy.Verdict](timeout.Config{DefaultTimeout: limit})
	return t.Execute(ctx, limit, func(ctx context.Context) (policy.Verdict, error) {
		return v.Validate(ctx, content, purpose)
	})
}
