package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
)

var (
	workersSkills       []string
	workersAvailability string
	workersMinSuccess   float64
	workersOutput       string
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Inspect the worker registry",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workers, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := worker.Filter{Skills: workersSkills, MinSuccessRate: workersMinSuccess}
		if workersAvailability != "" {
			a, err := worker.ParseAvailability(workersAvailability)
			if err != nil {
				return NewCLIError("invalid --availability", "Use available, busy or offline", err)
			}
			filter.Availability = a
		}

		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		profiles := rt.Engine.Registry.List(filter)
		out := cmd.OutOrStdout()
		if workersOutput == "json" {
			return writeJSON(out, profiles)
		}
		if len(profiles) == 0 {
			fmt.Fprintln(out, "No workers match. Set registry.workers_file to seed the registry.")
			return nil
		}
		renderWorkers(out, profiles)
		return nil
	},
}

var workersWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload the registry whenever the workers file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.Config.Registry.WorkersFile == "" {
			return NewCLIError("no workers file configured", "Set registry.workers_file in your config", nil)
		}
		rt.Config.Registry.Watch = true
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (%d workers). Press Ctrl+C to stop.\n",
			rt.Config.Registry.WorkersFile, rt.Engine.Registry.Len())

		err = rt.WatchWorkers(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	workersListCmd.Flags().StringSliceVar(&workersSkills, "skill", nil, "require these skills")
	workersListCmd.Flags().StringVar(&workersAvailability, "availability", "", "filter by availability")
	workersListCmd.Flags().Float64Var(&workersMinSuccess, "min-success", 0, "minimum success rate (0..1)")
	workersListCmd.Flags().StringVar(&workersOutput, "output", "table", "output format: table or json")
	workersCmd.AddCommand(workersListCmd, workersWatchCmd)
	RootCmd.AddCommand(workersCmd)
}
