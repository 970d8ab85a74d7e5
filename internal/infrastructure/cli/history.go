package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
)

var (
	historyKind  string
	historyLimit int
	historyMin   float64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query recorded decomposition, assignment and replanning patterns",
}

var historySearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Relevance-ranked search; without text lists the most recent records",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := history.Query{
			Text:         strings.Join(args, " "),
			Kind:         history.Kind(historyKind),
			Limit:        historyLimit,
			MinRelevance: historyMin,
		}
		if q.Kind != "" && !q.Kind.IsValid() {
			return NewCLIError("invalid --kind", "Use decomposition, assignment or replanning", history.ErrUnknownKind)
		}

		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		if rt.History == nil {
			return NewCLIError("history store disabled", "Set history.path in your config", nil)
		}

		found, err := rt.History.Search(cmd.Context(), q)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintln(out, "No matching history.")
			return nil
		}
		rows := make([]table.Row, 0, len(found))
		for _, a := range found {
			rows = append(rows, table.Row{
				a.RecordedAt.Local().Format("2006-01-02 15:04"),
				string(a.Kind),
				fmt.Sprintf("%.2f", a.Relevance),
				a.Summary,
			})
		}
		renderTable(out, []table.Column{
			{Title: "Recorded", Width: 16},
			{Title: "Kind", Width: 15},
			{Title: "Match", Width: 5},
			{Title: "Summary", Width: 60},
		}, rows)
		return nil
	},
}

func init() {
	historySearchCmd.Flags().StringVar(&historyKind, "kind", "", "restrict to one record kind")
	historySearchCmd.Flags().IntVar(&historyLimit, "limit", 0, fmt.Sprintf("maximum results (default %d, at most %d)", history.DefaultLimit, history.MaxLimit))
	historySearchCmd.Flags().Float64Var(&historyMin, "min-relevance", 0, "drop results scoring below this (0..1)")
	historyCmd.AddCommand(historySearchCmd)
	RootCmd.AddCommand(historyCmd)
}
