package planning

import (
	"fmt"
	"strings"
	"time"
)

// PlanningContext is the caller-supplied frame for a planning session.
type PlanningContext struct {
	Objective       string    `json:"objective" yaml:"objective"`
	Constraints     []string  `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Resources       []string  `json:"resources,omitempty" yaml:"resources,omitempty"`
	Timeframe       string    `json:"timeframe,omitempty" yaml:"timeframe,omitempty"`
	Stakeholders    []string  `json:"stakeholders,omitempty" yaml:"stakeholders,omitempty"`
	RiskTolerance   RiskLevel `json:"risk_tolerance,omitempty" yaml:"risk_tolerance,omitempty"`
	SuccessCriteria []string  `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
}

// Describe flattens the context into the text submitted for validation and
// embedded into generation prompts.
func (c PlanningContext) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Objective: %s\n", c.Objective)
	writeList(&b, "Constraints", c.Constraints)
	writeList(&b, "Resources", c.Resources)
	if c.Timeframe != "" {
		fmt.Fprintf(&b, "Timeframe: %s\n", c.Timeframe)
	}
	writeList(&b, "Stakeholders", c.Stakeholders)
	if c.RiskTolerance != "" {
		fmt.Fprintf(&b, "Risk tolerance: %s\n", c.RiskTolerance)
	}
	writeList(&b, "Success criteria", c.SuccessCriteria)
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// Clone returns a deep copy of the context.
func (c PlanningContext) Clone() PlanningContext {
	out := c
	out.Constraints = cloneStrings(c.Constraints)
	out.Resources = cloneStrings(c.Resources)
	out.Stakeholders = cloneStrings(c.Stakeholders)
	out.SuccessCriteria = cloneStrings(c.SuccessCriteria)
	return out
}

// SelectedStrategy records which catalog strategy a session runs under.
type SelectedStrategy struct {
	ID    string    `json:"id" yaml:"id"`
	Name  string    `json:"name" yaml:"name"`
	Risk  RiskLevel `json:"risk" yaml:"risk"`
	Score float64   `json:"score" yaml:"score"`
}

type Milestone struct {
	Name string    `json:"name" yaml:"name"`
	Due  time.Time `json:"due" yaml:"due"`
}

type Timeline struct {
	Start      time.Time   `json:"start" yaml:"start"`
	End        time.Time   `json:"end" yaml:"end"`
	Milestones []Milestone `json:"milestones,omitempty" yaml:"milestones,omitempty"`
}

type Risk struct {
	Description string    `json:"description" yaml:"description"`
	Level       RiskLevel `json:"level" yaml:"level"`
}

type RiskAssessment struct {
	Risks         []Risk   `json:"risks,omitempty" yaml:"risks,omitempty"`
	Mitigations   []string `json:"mitigations,omitempty" yaml:"mitigations,omitempty"`
	Contingencies []string `json:"contingencies,omitempty" yaml:"contingencies,omitempty"`
}

// QualityMetrics are the derived 0–100 scores of a session.
type QualityMetrics struct {
	PlanningScore        float64 `json:"planning_score" yaml:"planning_score"`
	FeasibilityRating    float64 `json:"feasibility_rating" yaml:"feasibility_rating"`
	ResourceOptimization float64 `json:"resource_optimization" yaml:"resource_optimization"`
}

// ReplanEvent is one entry in a session's replanning history.
type ReplanEvent struct {
	At            time.Time `json:"at" yaml:"at"`
	FromSessionID string    `json:"from_session_id" yaml:"from_session_id"`
	Change        string    `json:"change" yaml:"change"`
	Urgency       string    `json:"urgency" yaml:"urgency"`
	Narrative     string    `json:"narrative,omitempty" yaml:"narrative,omitempty"`
}

// Session is the planning session aggregate.
type Session struct {
	ID              string            `json:"id" yaml:"id"`
	Context         PlanningContext   `json:"context" yaml:"context"`
	Tasks           []Task            `json:"tasks" yaml:"tasks"`
	Strategy        *SelectedStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	AssignedWorkers []string          `json:"assigned_workers,omitempty" yaml:"assigned_workers,omitempty"`
	Timeline        Timeline          `json:"timeline" yaml:"timeline"`
	Risk            RiskAssessment    `json:"risk" yaml:"risk"`
	Metrics         QualityMetrics    `json:"metrics" yaml:"metrics"`
	Replans         []ReplanEvent     `json:"replans,omitempty" yaml:"replans,omitempty"`
	Tags            []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	State           SessionState      `json:"state" yaml:"state"`
	// Revision increases with every recorded mutation.
	Revision        int               `json:"revision" yaml:"revision"`
	CreatedAt       time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy. Archived sessions are only ever handed out as clones.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Context = s.Context.Clone()
	out.Tasks = CloneTasks(s.Tasks)
	if s.Strategy != nil {
		st := *s.Strategy
		out.Strategy = &st
	}
	out.AssignedWorkers = cloneStrings(s.AssignedWorkers)
	out.Timeline.Milestones = append([]Milestone(nil), s.Timeline.Milestones...)
	out.Risk = RiskAssessment{
		Risks:         append([]Risk(nil), s.Risk.Risks...),
		Mitigations:   cloneStrings(s.Risk.Mitigations),
		Contingencies: cloneStrings(s.Risk.Contingencies),
	}
	out.Replans = append([]ReplanEvent(nil), s.Replans...)
	out.Tags = cloneStrings(s.Tags)
	return &out
}

// TaskIndex returns the position of the task with the given ID.
func (s *Session) TaskIndex(taskID string) (int, bool) {
	for i, t := range s.Tasks {
		if t.ID == taskID {
			return i, true
		}
	}
	return -1, false
}

// MergeTasks appends tasks whose IDs are new to the session and returns how
// many were added. Existing tasks are never removed or overwritten.
func (s *Session) MergeTasks(tasks []Task) int {
	existing := make(map[string]bool, len(s.Tasks))
	for _, t := range s.Tasks {
		existing[t.ID] = true
	}
	added := 0
	for _, t := range tasks {
		if existing[t.ID] {
			continue
		}
		existing[t.ID] = true
		s.Tasks = append(s.Tasks, t.Clone())
		added++
	}
	return added
}

// AddAssignedWorkers records worker IDs, keeping first-seen order.
func (s *Session) AddAssignedWorkers(ids ...string) {
	seen := make(map[string]bool, len(s.AssignedWorkers))
	for _, id := range s.AssignedWorkers {
		seen[id] = true
	}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s.AssignedWorkers = append(s.AssignedWorkers, id)
	}
}

// AddTag appends a tag unless already present.
func (s *Session) AddTag(tag string) {
	if s.HasTag(tag) {
		return
	}
	s.Tags = append(s.Tags, tag)
}

func (s *Session) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AllCompleted reports whether the session has tasks and every one is completed.
func (s *Session) AllCompleted() bool {
	if len(s.Tasks) == 0 {
		return false
	}
	for _, t := range s.Tasks {
		if t.Status != StatusCompleted {
			return false
		}
	}
	return true
}
