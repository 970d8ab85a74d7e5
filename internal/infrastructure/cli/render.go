package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func renderTable(w io.Writer, columns []table.Column, rows []table.Row) {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	fmt.Fprintln(w, t.View())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderSession(w io.Writer, s *planning.Session) {
	fmt.Fprintln(w, titleStyle.Render("Session "+s.ID))
	fmt.Fprintf(w, "Objective: %s\n", s.Context.Objective)
	if s.Strategy != nil {
		fmt.Fprintf(w, "Strategy:  %s (score %.2f, %s risk)\n", s.Strategy.Name, s.Strategy.Score, s.Strategy.Risk)
	}
	fmt.Fprintf(w, "State:     %s\n", s.State)
	if len(s.Tags) > 0 {
		fmt.Fprintf(w, "Tags:      %s\n", strings.Join(s.Tags, ", "))
	}

	byID := make(map[string]string, len(s.Tasks))
	for _, t := range s.Tasks {
		byID[t.ID] = t.Title
	}
	rows := make([]table.Row, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		deps := make([]string, len(t.Dependencies))
		for i, d := range t.Dependencies {
			deps[i] = byID[d]
		}
		rows = append(rows, table.Row{
			shortID(t.ID),
			t.Title,
			string(t.Priority),
			string(t.Complexity),
			fmt.Sprintf("%.0f", t.EstimatedHours),
			strings.Join(t.SuggestedWorkers, ","),
			string(t.Status),
			strings.Join(deps, "; "),
		})
	}
	renderTable(w, []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Task", Width: 32},
		{Title: "Priority", Width: 8},
		{Title: "Complexity", Width: 10},
		{Title: "Hours", Width: 5},
		{Title: "Worker", Width: 10},
		{Title: "Status", Width: 11},
		{Title: "Depends on", Width: 24},
	}, rows)

	m := s.Metrics
	fmt.Fprintf(w, "Planning %.2f  Feasibility %.2f  Resources %.2f\n",
		m.PlanningScore, m.FeasibilityRating, m.ResourceOptimization)
	for _, r := range s.Risk.Risks {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("risk (%s): %s", r.Level, r.Description)))
	}
	for _, ms := range s.Timeline.Milestones {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("milestone %s: %s", ms.Due.Format("2006-01-02"), ms.Name)))
	}
}

func renderWorkers(w io.Writer, profiles []worker.Profile) {
	rows := make([]table.Row, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, table.Row{
			p.ID,
			p.Type,
			strings.Join(p.Skills, ","),
			string(p.Availability),
			fmt.Sprintf("%.0f", p.Workload),
			fmt.Sprintf("%.2f", p.Performance.SuccessRate),
			fmt.Sprintf("%d", len(p.AssignedTasks)),
		})
	}
	renderTable(w, []table.Column{
		{Title: "ID", Width: 12},
		{Title: "Type", Width: 10},
		{Title: "Skills", Width: 28},
		{Title: "Availability", Width: 12},
		{Title: "Load", Width: 5},
		{Title: "Success", Width: 7},
		{Title: "Tasks", Width: 5},
	}, rows)
}
