package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
)

var validatePurpose string

var validateCmd = &cobra.Command{
	Use:   "validate [text]",
	Short: "Run the configured policy validator over text (or stdin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.Join(args, " ")
		if len(args) == 0 {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			content = string(data)
		}

		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if d := rt.Config.Validation.Timeout; d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		verdict, err := rt.Validator.Validate(ctx, content, validatePurpose)
		if err != nil {
			return NewCLIError("validator failed", "Check validation.plugin or raise validation.timeout", err)
		}

		out := cmd.OutOrStdout()
		status := titleStyle.Render("valid")
		if !verdict.Valid {
			status = warnStyle.Render("rejected")
		}
		fmt.Fprintf(out, "%s (score %.0f)\n", status, verdict.Score)
		for _, v := range verdict.Violations {
			fmt.Fprintf(out, "  [%s] %s: %s\n", v.Level, v.RuleID, v.Message)
		}
		if !verdict.Valid {
			return &CLIError{Message: "content rejected by policy", ExitCode: 2}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validatePurpose, "purpose", policy.PurposePlanningContext,
		fmt.Sprintf("validation purpose (%s or %s)", policy.PurposePlanningContext, policy.PurposeTask))
	RootCmd.AddCommand(validateCmd)
}
