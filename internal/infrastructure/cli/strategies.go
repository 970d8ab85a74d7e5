package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "Inspect the strategy catalog",
}

var strategiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		var rows []table.Row
		for _, s := range rt.Engine.Catalog.List() {
			rows = append(rows, table.Row{
				s.ID,
				s.Name,
				fmt.Sprintf("%.2f", s.SuccessRate),
				string(s.Risk),
				s.AvgCompletion.String(),
				strings.Join(s.Scenarios, ","),
			})
		}
		renderTable(cmd.OutOrStdout(), []table.Column{
			{Title: "ID", Width: 14},
			{Title: "Name", Width: 22},
			{Title: "Success", Width: 7},
			{Title: "Risk", Width: 8},
			{Title: "Avg", Width: 10},
			{Title: "Scenarios", Width: 36},
		}, rows)
		return nil
	},
}

var strategiesRankRisk string

var strategiesRankCmd = &cobra.Command{
	Use:   "rank <objective>",
	Short: "Score every strategy against an objective",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		pctx := planning.PlanningContext{
			Objective:     strings.Join(args, " "),
			RiskTolerance: planning.RiskLevel(strategiesRankRisk),
		}
		var rows []table.Row
		for i, r := range rt.Engine.Catalog.Rank(pctx) {
			rows = append(rows, table.Row{
				fmt.Sprintf("%d", i+1),
				r.Strategy.ID,
				fmt.Sprintf("%.3f", r.Score),
			})
		}
		renderTable(cmd.OutOrStdout(), []table.Column{
			{Title: "#", Width: 3},
			{Title: "Strategy", Width: 14},
			{Title: "Score", Width: 7},
		}, rows)
		return nil
	},
}

func init() {
	strategiesRankCmd.Flags().StringVar(&strategiesRankRisk, "risk", "", "risk tolerance of the context")
	strategiesCmd.AddCommand(strategiesListCmd, strategiesRankCmd)
	RootCmd.AddCommand(strategiesCmd)
}
