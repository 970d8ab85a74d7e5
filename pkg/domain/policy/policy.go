// Package policy defines the validation contract applied to planning input
// and generated tasks, plus a rule-based implementation of it.
package policy

import (
	"context"
	"math"
)

// Purposes passed to a Validator.
const (
	PurposePlanningContext = "planning_context"
	PurposeTask            = "task"
)

type ViolationLevel string

const (
	ViolationWarning ViolationLevel = "warning"
	ViolationError   ViolationLevel = "error"
)

// Violation represents a breach of a policy rule.
type Violation struct {
	RuleID  string         `json:"rule_id"`
	Message string         `json:"message"`
	Level   ViolationLevel `json:"level"`
}

// Verdict is the outcome of validating one piece of content.
type Verdict struct {
	Valid      bool        `json:"valid"`
	Score      float64     `json:"score"`
	Violations []Violation `json:"violations,omitempty"`
}

// Validator scores content for a given purpose.
type Validator interface {
	Validate(ctx context.Context, content, purpose string) (Verdict, error)
}

// Rule is a single content check.
type Rule interface {
	ID() string
	Check(content, purpose string) []Violation
}

// Penalties subtracted from a perfect score of 100.
const (
	DefaultErrorPenalty   = 40.0
	DefaultWarningPenalty = 10.0
)

// RuleSet is a Validator built from local rules.
type RuleSet struct {
	Rules []Rule
	// MinScore rejects content scoring below it even without error violations.
	MinScore       float64
	ErrorPenalty   float64
	WarningPenalty float64
}

// NewRuleSet returns a RuleSet with default penalties.
func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{
		Rules:          rules,
		ErrorPenalty:   DefaultErrorPenalty,
		WarningPenalty: DefaultWarningPenalty,
	}
}

// Validate runs every rule. Content is valid when no error-level violation
// fired and the score reaches MinScore.
func (rs *RuleSet) Validate(ctx context.Context, content, purpose string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	var violations []Violation
	for _, rule := range rs.Rules {
		violations = append(violations, rule.Check(content, purpose)...)
	}

	score := 100.0
	hasError := false
	for _, v := range violations {
		switch v.Level {
		case ViolationError:
			hasError = true
			score -= rs.ErrorPenalty
		default:
			score -= rs.WarningPenalty
		}
	}
	score = math.Max(0, score)

	return Verdict{
		Valid:      !hasError && score >= rs.MinScore,
		Score:      score,
		Violations: violations,
	}, nil
}
