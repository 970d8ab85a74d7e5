package planning

import (
	"fmt"
	"math"
)

// MetricWeights are the tunable constants behind QualityMetrics.
type MetricWeights struct {
	// ComplexityBaseline is the average complexity weight that costs no feasibility.
	ComplexityBaseline float64 `mapstructure:"complexity_baseline" yaml:"complexity_baseline"`
	// ComplexitySlope is the feasibility lost per unit of complexity above baseline.
	ComplexitySlope float64 `mapstructure:"complexity_slope" yaml:"complexity_slope"`
	// BlockedPenalty is the feasibility lost per blocked task.
	BlockedPenalty   float64 `mapstructure:"blocked_penalty" yaml:"blocked_penalty"`
	WorkerWeight     float64 `mapstructure:"worker_weight" yaml:"worker_weight"`
	CompletionWeight float64 `mapstructure:"completion_weight" yaml:"completion_weight"`
}

// DefaultMetricWeights returns the standard metric constants.
func DefaultMetricWeights() MetricWeights {
	return MetricWeights{
		ComplexityBaseline: 2,
		ComplexitySlope:    15,
		BlockedPenalty:     5,
		WorkerWeight:       60,
		CompletionWeight:   40,
	}
}

// ComputeMetrics derives the session's quality metrics from its tasks and
// the number of distinct workers assigned. Feasibility is floored at 0 and
// also capped at 100: sessions of only simple tasks would otherwise score
// above the 0 to 100 range every other metric uses.
func ComputeMetrics(tasks []Task, assignedWorkers int, w MetricWeights) QualityMetrics {
	if len(tasks) == 0 {
		return QualityMetrics{FeasibilityRating: 100}
	}

	total := float64(len(tasks))
	var quality, complexity float64
	var blocked, completed int
	for _, t := range tasks {
		quality += t.QualityScore
		complexity += float64(t.Complexity.Weight())
		switch t.Status {
		case StatusBlocked:
			blocked++
		case StatusCompleted:
			completed++
		}
	}

	avgComplexity := complexity / total
	feasibility := 100 - (avgComplexity-w.ComplexityBaseline)*w.ComplexitySlope - float64(blocked)*w.BlockedPenalty

	resource := float64(assignedWorkers)/total*w.WorkerWeight + float64(completed)/total*w.CompletionWeight

	return QualityMetrics{
		PlanningScore:        round2(quality / total),
		FeasibilityRating:    round2(clamp(feasibility, 0, 100)),
		ResourceOptimization: round2(math.Min(100, resource)),
	}
}

// ProgressSnapshot summarises execution progress for replanning.
type ProgressSnapshot struct {
	Total          int      `json:"total"`
	Planned        int      `json:"planned"`
	Assigned       int      `json:"assigned"`
	InProgress     int      `json:"in_progress"`
	Completed      int      `json:"completed"`
	Blocked        int      `json:"blocked"`
	CompletionRate float64  `json:"completion_rate"`
	AvgComplexity  float64  `json:"avg_complexity"`
	RiskCount      int      `json:"risk_count"`
	Bottlenecks    []string `json:"bottlenecks,omitempty"`
}

// Progress computes a snapshot of the session's execution state. Blocked
// tasks are reported as bottlenecks along with the work they hold up.
func (s *Session) Progress() ProgressSnapshot {
	snap := ProgressSnapshot{Total: len(s.Tasks), RiskCount: len(s.Risk.Risks)}
	var complexity float64
	for _, t := range s.Tasks {
		complexity += float64(t.Complexity.Weight())
		switch t.Status {
		case StatusPlanned:
			snap.Planned++
		case StatusAssigned:
			snap.Assigned++
		case StatusInProgress:
			snap.InProgress++
		case StatusCompleted:
			snap.Completed++
		case StatusBlocked:
			snap.Blocked++
			held := Dependents(s.Tasks, t.ID)
			if len(held) > 0 {
				snap.Bottlenecks = append(snap.Bottlenecks,
					fmt.Sprintf("%q is blocked and holds up %d task(s)", t.Title, len(held)))
			} else {
				snap.Bottlenecks = append(snap.Bottlenecks, fmt.Sprintf("%q is blocked", t.Title))
			}
		}
	}
	if snap.Total > 0 {
		snap.CompletionRate = round2(float64(snap.Completed) / float64(snap.Total) * 100)
		snap.AvgComplexity = round2(complexity / float64(snap.Total))
	}
	return snap
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
