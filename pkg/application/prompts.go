package application

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

const decompositionSystemPrompt = "You are a technical lead planning work for a team of agents. " +
	"Respond with a JSON array of tasks only, no prose."

const replanSystemPrompt = "You are a delivery lead. Explain briefly how the plan should adapt. " +
	"Plain text, at most five sentences."

func buildDecompositionPrompt(objective string, pctx planning.PlanningContext, examples []history.Artifact, maxTasks int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Break the following objective into at most %d concrete tasks.\n\n", maxTasks)
	fmt.Fprintf(&b, "Objective: %s\n\n", objective)
	b.WriteString("Context:\n")
	b.WriteString(pctx.Describe())

	if len(examples) > 0 {
		b.WriteString("\nDecompositions that worked before:\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "- %s\n", ex.Summary)
		}
	}

	b.WriteString(`
Each task is an object with these fields:
  "id": short slug, unique in the list
  "title": imperative sentence
  "description": one or two sentences
  "priority": one of critical, high, medium, low
  "complexity": one of simple, moderate, complex, expert
  "estimated_hours": number
  "dependencies": ids of tasks in this list that must finish first
  "required_skills": lowercase skill tags

Return ONLY the JSON array.
`)
	return b.String()
}

func buildReplanPrompt(s *planning.Session, snap planning.ProgressSnapshot, change string, urgency planning.Urgency) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Objective: %s\n", s.Context.Objective)
	if s.Strategy != nil {
		fmt.Fprintf(&b, "Strategy: %s\n", s.Strategy.Name)
	}
	fmt.Fprintf(&b, "Change: %s\nUrgency: %s\n\n", change, urgency)

	fmt.Fprintf(&b, "Progress: %d of %d tasks completed (%.0f%%), %d in progress, %d blocked.\n",
		snap.Completed, snap.Total, snap.CompletionRate, snap.InProgress, snap.Blocked)
	fmt.Fprintf(&b, "Average complexity weight: %.2f. Known risks: %d.\n", snap.AvgComplexity, snap.RiskCount)
	for _, bn := range snap.Bottlenecks {
		fmt.Fprintf(&b, "Bottleneck: %s\n", bn)
	}

	b.WriteString("\nOpen tasks:\n")
	for _, t := range s.Tasks {
		if t.Status == planning.StatusCompleted {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", t.Status, t.Title, t.Priority)
	}
	return b.String()
}
