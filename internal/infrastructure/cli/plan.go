package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/taskforge/pkg/application"
	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

var (
	planContextFile string
	planObjective   string
	planCriteria    []string
	planConstraints []string
	planTimeframe   string
	planRisk        string
	planMaxTasks    int
	planOutput      string
	planChange      string
	planUrgency     string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan an objective: decompose, pick a strategy and assign workers",
	Long: `Runs the full planning pipeline for one objective. The context comes from
--context (YAML) with flags overriding individual fields. With --change the
fresh session is immediately replanned and both sessions are reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pctx, err := buildPlanningContext()
		if err != nil {
			return err
		}

		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.Engine.Plan(cmd.Context(), pctx, planMaxTasks)
		if err != nil {
			return MapError(err)
		}

		var replanned *application.ReplanResult
		if planChange != "" {
			if replanned, err = rt.Engine.Replan(cmd.Context(), res.Session.ID, planChange, planUrgency); err != nil {
				return MapError(err)
			}
		}

		out := cmd.OutOrStdout()
		if planOutput == "json" {
			return writeJSON(out, newPlanReport(res, replanned))
		}

		renderSession(out, res.Session)
		if d := res.Decomposition; d != nil {
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("source %s, %d dropped by policy, %d history examples", d.Source, d.Dropped, d.Examples)))
			if d.ParseFailure != nil {
				fmt.Fprintln(out, warnStyle.Render("structured output unavailable: "+d.ParseFailure.Reason))
			}
			if d.GenerationError != nil {
				fmt.Fprintln(out, warnStyle.Render("generation failed: "+d.GenerationError.Error()))
			}
		}
		if len(res.Assignment.Unassigned) > 0 {
			fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("%d task(s) had no eligible worker", len(res.Assignment.Unassigned))))
		}

		if replanned != nil {
			fmt.Fprintln(out)
			renderSession(out, replanned.Session)
			if replanned.Narrative != "" {
				fmt.Fprintln(out, replanned.Narrative)
			}
		}
		return nil
	},
}

type planReport struct {
	Session         *planning.Session `json:"session"`
	Source          string            `json:"source,omitempty"`
	Dropped         int               `json:"dropped"`
	ParseFailure    string            `json:"parse_failure,omitempty"`
	GenerationError string            `json:"generation_error,omitempty"`
	Unassigned      int               `json:"unassigned"`
	Replanned       *planning.Session `json:"replanned,omitempty"`
	Narrative       string            `json:"narrative,omitempty"`
}

func newPlanReport(res *application.PlanResult, replanned *application.ReplanResult) planReport {
	r := planReport{Session: res.Session, Unassigned: len(res.Assignment.Unassigned)}
	if d := res.Decomposition; d != nil {
		r.Source = string(d.Source)
		r.Dropped = d.Dropped
		if d.ParseFailure != nil {
			r.ParseFailure = d.ParseFailure.Error()
		}
		if d.GenerationError != nil {
			r.GenerationError = d.GenerationError.Error()
		}
	}
	if replanned != nil {
		r.Replanned = replanned.Session
		r.Narrative = replanned.Narrative
	}
	return r
}

func buildPlanningContext() (planning.PlanningContext, error) {
	var pctx planning.PlanningContext
	if planContextFile != "" {
		// #nosec G304 -- path is supplied by the operator
		data, err := os.ReadFile(planContextFile)
		if err != nil {
			return pctx, fmt.Errorf("read context file: %w", err)
		}
		if err := yaml.Unmarshal(data, &pctx); err != nil {
			return pctx, NewCLIError("context file is not valid YAML", "See 'taskforge plan --help' for the field names", err)
		}
	}

	if planObjective != "" {
		pctx.Objective = planObjective
	}
	if len(planCriteria) > 0 {
		pctx.SuccessCriteria = planCriteria
	}
	if len(planConstraints) > 0 {
		pctx.Constraints = planConstraints
	}
	if planTimeframe != "" {
		pctx.Timeframe = planTimeframe
	}
	if planRisk != "" {
		pctx.RiskTolerance = planning.RiskLevel(planRisk)
	}
	if pctx.Objective == "" {
		return pctx, MapError(application.ErrEmptyObjective)
	}
	return pctx, nil
}

func init() {
	planCmd.Flags().StringVar(&planContextFile, "context", "", "YAML file holding the planning context")
	planCmd.Flags().StringVarP(&planObjective, "objective", "o", "", "objective to plan")
	planCmd.Flags().StringSliceVar(&planCriteria, "criteria", nil, "success criteria")
	planCmd.Flags().StringSliceVar(&planConstraints, "constraint", nil, "constraints")
	planCmd.Flags().StringVar(&planTimeframe, "timeframe", "", "timeframe such as 3d, 2w or 36h")
	planCmd.Flags().StringVar(&planRisk, "risk", "", "risk tolerance (low, medium, high, critical)")
	planCmd.Flags().IntVar(&planMaxTasks, "max-tasks", 0, "cap on generated tasks (default: decomposition.max_tasks)")
	planCmd.Flags().StringVar(&planOutput, "output", "table", "output format: table or json")
	planCmd.Flags().StringVar(&planChange, "change", "", "replan the new session for this change")
	planCmd.Flags().StringVar(&planUrgency, "urgency", "", "urgency of --change (low, medium, high, critical)")
	RootCmd.AddCommand(planCmd)
}
