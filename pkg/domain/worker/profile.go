// Package worker models capability-profiled workers and the registry that
// tracks them.
package worker

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

type Availability string

const (
	Available Availability = "available"
	Busy      Availability = "busy"
	Offline   Availability = "offline"
)

func (a Availability) IsValid() bool {
	switch a {
	case Available, Busy, Offline:
		return true
	default:
		return false
	}
}

func (a Availability) String() string {
	return string(a)
}

// Bonus is the availability term of the assignment score. Only an
// available worker earns it.
func (a Availability) Bonus() float64 {
	if a == Available {
		return 1.0
	}
	return 0
}

// ParseAvailability parses an availability string; matching is case-insensitive.
func ParseAvailability(s string) (Availability, error) {
	a := Availability(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("invalid availability: %s", s)
	}
	return a, nil
}

func (a *Availability) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*a = Available
		return nil
	}
	parsed, err := ParseAvailability(str)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PerformanceMetrics are historical scores. Rates and scores are 0..1.
type PerformanceMetrics struct {
	SuccessRate         float64       `json:"success_rate" yaml:"success_rate"`
	AvgResponseTime     time.Duration `json:"avg_response_time" yaml:"avg_response_time"`
	QualityScore        float64       `json:"quality_score" yaml:"quality_score"`
	CollaborationRating float64       `json:"collaboration_rating" yaml:"collaboration_rating"`
}

// MaxWorkload is the saturation point of a worker's load.
const MaxWorkload = 100.0

// Profile describes one worker's capabilities and current load.
type Profile struct {
	ID              string             `json:"id" yaml:"id"`
	Type            string             `json:"type" yaml:"type"`
	Skills          []string           `json:"skills" yaml:"skills"`
	Specializations []string           `json:"specializations,omitempty" yaml:"specializations,omitempty"`
	Performance     PerformanceMetrics `json:"performance" yaml:"performance"`
	Availability    Availability       `json:"availability" yaml:"availability"`
	Workload        float64            `json:"workload" yaml:"workload"`
	AssignedTasks   []string           `json:"assigned_tasks,omitempty" yaml:"assigned_tasks,omitempty"`
}

// Validate checks the profile's invariants.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingID
	}
	if !p.Availability.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAvailability, p.Availability)
	}
	if p.Workload < 0 || p.Workload > MaxWorkload || math.IsNaN(p.Workload) {
		return fmt.Errorf("%w: %v", ErrWorkloadOutOfRange, p.Workload)
	}
	return nil
}

// HasSkill reports whether the worker lists skill, ignoring case.
func (p Profile) HasSkill(skill string) bool {
	return containsFold(p.Skills, skill)
}

// SkillMatch returns the fraction of required skills the worker holds.
// A task that requires nothing is matched fully by everyone.
func (p Profile) SkillMatch(required []string) float64 {
	if len(required) == 0 {
		return 1
	}
	matched := 0
	for _, s := range required {
		if p.HasSkill(s) {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	c := p
	c.Skills = append([]string(nil), p.Skills...)
	c.Specializations = append([]string(nil), p.Specializations...)
	c.AssignedTasks = append([]string(nil), p.AssignedTasks...)
	return c
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}
