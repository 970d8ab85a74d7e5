package planning

import (
	"fmt"
	"time"
)

// NewSession builds a fresh session in the created state. The timeline and
// risk assessment are derived from the context and the selected strategy.
func NewSession(id string, pctx PlanningContext, strategy *SelectedStrategy, now time.Time) *Session {
	return &Session{
		ID:        id,
		Context:   pctx.Clone(),
		Strategy:  strategy,
		Timeline:  BuildTimeline(pctx, now),
		Risk:      AssessRisk(pctx, strategy),
		Metrics:   ComputeMetrics(nil, 0, DefaultMetricWeights()),
		State:     SessionCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BuildTimeline spreads one milestone per success criterion evenly across the
// timeframe. Without criteria a single completion milestone sits at the end.
func BuildTimeline(pctx PlanningContext, start time.Time) Timeline {
	tf, err := ParseTimeframe(pctx.Timeframe)
	span := DefaultTimeframe
	if err == nil {
		span = tf.DurationOr(DefaultTimeframe)
	}
	end := start.Add(span)

	var milestones []Milestone
	if n := len(pctx.SuccessCriteria); n > 0 {
		step := span / time.Duration(n)
		for i, c := range pctx.SuccessCriteria {
			milestones = append(milestones, Milestone{Name: c, Due: start.Add(step * time.Duration(i+1))})
		}
	} else {
		milestones = []Milestone{{Name: "Objective complete", Due: end}}
	}

	return Timeline{Start: start, End: end, Milestones: milestones}
}

// AssessRisk derives a first-pass risk assessment from the planning context.
func AssessRisk(pctx PlanningContext, strategy *SelectedStrategy) RiskAssessment {
	var ra RiskAssessment
	tolerance := pctx.RiskTolerance
	if !tolerance.IsValid() {
		tolerance = RiskMedium
	}

	if strategy == nil {
		ra.Risks = append(ra.Risks, Risk{Description: "no execution strategy matched the context", Level: RiskMedium})
		ra.Mitigations = append(ra.Mitigations, "register a strategy covering this scenario and replan")
	} else if strategy.Risk.Exceeds(tolerance) {
		ra.Risks = append(ra.Risks, Risk{
			Description: fmt.Sprintf("strategy %q carries %s risk above the %s tolerance", strategy.Name, strategy.Risk, tolerance),
			Level:       strategy.Risk,
		})
		ra.Mitigations = append(ra.Mitigations, "add review checkpoints at each milestone")
	}

	if _, err := ParseTimeframe(pctx.Timeframe); err != nil {
		ra.Risks = append(ra.Risks, Risk{Description: "timeframe could not be parsed; default window applied", Level: RiskLow})
	} else if pctx.Timeframe == "" {
		ra.Risks = append(ra.Risks, Risk{Description: "no timeframe given; default window applied", Level: RiskLow})
	}

	if len(pctx.Resources) == 0 {
		ra.Risks = append(ra.Risks, Risk{Description: "no resources declared for the objective", Level: RiskMedium})
		ra.Mitigations = append(ra.Mitigations, "confirm worker availability before assignment")
	}

	if len(pctx.Constraints) > 3 {
		ra.Risks = append(ra.Risks, Risk{Description: "heavily constrained objective", Level: RiskMedium})
	}

	ra.Contingencies = append(ra.Contingencies,
		"replan with the changed conditions when a task becomes blocked",
	)
	if len(pctx.Stakeholders) > 0 {
		ra.Contingencies = append(ra.Contingencies, "escalate scope changes to stakeholders")
	}
	return ra
}
