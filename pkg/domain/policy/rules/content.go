// Package rules contains the built-in content rules for the policy validator.
package rules

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
)

// NonEmptyRule rejects blank content.
type NonEmptyRule struct{}

func (NonEmptyRule) ID() string { return "non-empty" }

func (r NonEmptyRule) Check(content, _ string) []policy.Violation {
	if strings.TrimSpace(content) != "" {
		return nil
	}
	return []policy.Violation{{RuleID: r.ID(), Level: policy.ViolationError, Message: "content is empty"}}
}

// MaxLengthRule rejects content longer than Limit bytes.
type MaxLengthRule struct {
	Limit int `yaml:"limit"`
}

func (r MaxLengthRule) ID() string { return "max-length" }

func (r MaxLengthRule) Check(content, _ string) []policy.Violation {
	if r.Limit <= 0 || len(content) <= r.Limit {
		return nil
	}
	return []policy.Violation{{
		RuleID:  r.ID(),
		Level:   policy.ViolationError,
		Message: fmt.Sprintf("content is %d bytes (limit: %d)", len(content), r.Limit),
	}}
}

// ActionableTitleRule warns when a task's first line is a single word.
type ActionableTitleRule struct{}

func (ActionableTitleRule) ID() string { return "actionable-title" }

func (r ActionableTitleRule) Check(content, purpose string) []policy.Violation {
	if purpose != policy.PurposeTask {
		return nil
	}
	title, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	if len(strings.Fields(title)) >= 2 {
		return nil
	}
	return []policy.Violation{{RuleID: r.ID(), Level: policy.ViolationWarning, Message: "task title is not actionable"}}
}
