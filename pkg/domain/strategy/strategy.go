// Package strategy holds the catalog of execution strategies and the scoring
// used to pick one for a planning context.
package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

var (
	ErrDuplicateStrategy = errors.New("strategy already registered")
	ErrStrategyNotFound  = errors.New("strategy not found")
	ErrInvalidStrategy   = errors.New("invalid strategy")
)

// Strategy is an immutable catalog entry.
type Strategy struct {
	ID                string             `json:"id" yaml:"id"`
	Name              string             `json:"name" yaml:"name"`
	Scenarios         []string           `json:"scenarios" yaml:"scenarios"`
	SuccessRate       float64            `json:"success_rate" yaml:"success_rate"`
	AvgCompletion     time.Duration      `json:"avg_completion" yaml:"avg_completion"`
	RequiredResources []string           `json:"required_resources,omitempty" yaml:"required_resources,omitempty"`
	Risk              planning.RiskLevel `json:"risk" yaml:"risk"`
}

func (s Strategy) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidStrategy)
	}
	if s.SuccessRate < 0 || s.SuccessRate > 1 {
		return fmt.Errorf("%w: %s success rate %v outside [0,1]", ErrInvalidStrategy, s.ID, s.SuccessRate)
	}
	if !s.Risk.IsValid() {
		return fmt.Errorf("%w: %s risk %q", ErrInvalidStrategy, s.ID, s.Risk)
	}
	return nil
}

func (s Strategy) clone() Strategy {
	c := s
	c.Scenarios = append([]string(nil), s.Scenarios...)
	c.RequiredResources = append([]string(nil), s.RequiredResources...)
	return c
}

// Defaults returns the built-in strategies.
func Defaults() []Strategy {
	return []Strategy{
		{
			ID:            "iterative",
			Name:          "Iterative Delivery",
			Scenarios:     []string{"feature", "ui", "page", "prototype", "mvp", "product"},
			SuccessRate:   0.85,
			AvgCompletion: 5 * 24 * time.Hour,
			Risk:          planning.RiskLow,
		},
		{
			ID:                "sequential",
			Name:              "Sequential Phases",
			Scenarios:         []string{"migration", "compliance", "infrastructure", "release", "audit", "security"},
			SuccessRate:       0.8,
			AvgCompletion:     10 * 24 * time.Hour,
			RequiredResources: []string{"reviewer"},
			Risk:              planning.RiskLow,
		},
		{
			ID:            "adaptive",
			Name:          "Adaptive Exploration",
			Scenarios:     []string{"research", "investigation", "incident", "unknown", "spike", "experiment"},
			SuccessRate:   0.7,
			AvgCompletion: 7 * 24 * time.Hour,
			Risk:          planning.RiskMedium,
		},
		{
			ID:            "parallel",
			Name:          "Parallel Workstreams",
			Scenarios:     []string{"batch", "scale", "independent", "platform", "rollout"},
			SuccessRate:   0.75,
			AvgCompletion: 4 * 24 * time.Hour,
			Risk:          planning.RiskHigh,
		},
	}
}
