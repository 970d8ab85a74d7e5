package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"
)

var auditSession string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the hash-chained audit log of session events",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that no audit entry was altered or removed",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		if rt.Audit == nil {
			return NewCLIError("audit log disabled", "Set audit.path in your config", nil)
		}

		violations, err := rt.Audit.Violations()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, v := range violations {
			fmt.Fprintln(out, warnStyle.Render(v))
		}
		if err := rt.Audit.VerifyIntegrity(); err != nil {
			return MapError(err)
		}
		fmt.Fprintf(out, "Audit log %s is intact.\n", rt.Audit.Path())
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List audit entries, optionally for one session",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		if rt.Audit == nil {
			return NewCLIError("audit log disabled", "Set audit.path in your config", nil)
		}

		entries, err := rt.Audit.LoadAll()
		if auditSession != "" {
			entries, err = rt.Audit.LoadBySession(auditSession)
		}
		if err != nil {
			return err
		}

		rows := make([]table.Row, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, table.Row{
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Type,
				shortID(e.SessionID),
				e.Actor,
			})
		}
		renderTable(cmd.OutOrStdout(), []table.Column{
			{Title: "Time", Width: 19},
			{Title: "Event", Width: 28},
			{Title: "Session", Width: 8},
			{Title: "Actor", Width: 10},
		}, rows)
		return nil
	},
}

func init() {
	auditShowCmd.Flags().StringVar(&auditSession, "session", "", "only entries for this session ID")
	auditCmd.AddCommand(auditVerifyCmd, auditShowCmd)
	RootCmd.AddCommand(auditCmd)
}
