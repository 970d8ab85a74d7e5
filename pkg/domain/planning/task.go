// Package planning holds the task graph and planning session aggregate.
package planning

import (
	"time"
)

type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

type TaskComplexity string

const (
	ComplexitySimple   TaskComplexity = "simple"
	ComplexityModerate TaskComplexity = "moderate"
	ComplexityComplex  TaskComplexity = "complex"
	ComplexityExpert   TaskComplexity = "expert"
)

type TaskStatus string

const (
	StatusPlanned    TaskStatus = "planned"
	StatusAssigned   TaskStatus = "assigned"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
)

// DefaultEstimatedHours is the effort assumed when none is supplied.
const DefaultEstimatedHours = 8.0

// Task is a unit of work inside a planning session.
type Task struct {
	ID               string         `json:"id" yaml:"id"`
	Title            string         `json:"title" yaml:"title"`
	Description      string         `json:"description,omitempty" yaml:"description,omitempty"`
	Priority         TaskPriority   `json:"priority" yaml:"priority"`
	Complexity       TaskComplexity `json:"complexity" yaml:"complexity"`
	EstimatedHours   float64        `json:"estimated_hours" yaml:"estimated_hours"`
	Dependencies     []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	RequiredSkills   []string       `json:"required_skills,omitempty" yaml:"required_skills,omitempty"`
	SuggestedWorkers []string       `json:"suggested_workers,omitempty" yaml:"suggested_workers,omitempty"`
	Status           TaskStatus     `json:"status" yaml:"status"`
	QualityScore     float64        `json:"quality_score" yaml:"quality_score"`
	PolicyCompliant  bool           `json:"policy_compliant" yaml:"policy_compliant"`
	CreatedAt        time.Time      `json:"created_at" yaml:"created_at"`
}

// Weight is the ordering key used by the assignment optimizer.
func (t Task) Weight() int {
	return t.Priority.Weight()*2 + t.Complexity.Weight()
}

// Effort returns the estimated hours, falling back to the default when unset.
func (t Task) Effort() float64 {
	if t.EstimatedHours <= 0 {
		return DefaultEstimatedHours
	}
	return t.EstimatedHours
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.Dependencies = cloneStrings(t.Dependencies)
	c.RequiredSkills = cloneStrings(t.RequiredSkills)
	c.SuggestedWorkers = cloneStrings(t.SuggestedWorkers)
	return c
}

// CloneTasks deep-copies a task slice.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// Normalize fills defaults for fields an untrusted producer left empty or invalid.
func (t *Task) Normalize() {
	if !t.Priority.IsValid() {
		t.Priority = DefaultTaskPriority()
	}
	if !t.Complexity.IsValid() {
		t.Complexity = DefaultTaskComplexity()
	}
	if t.EstimatedHours <= 0 {
		t.EstimatedHours = DefaultEstimatedHours
	}
	if !t.Status.IsValid() {
		t.Status = StatusPlanned
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
