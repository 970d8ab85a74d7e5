package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskforge/internal/infrastructure/config"
	"github.com/felixgeelhaar/taskforge/internal/infrastructure/logging"
	"github.com/felixgeelhaar/taskforge/internal/infrastructure/wiring"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configPath string
	logLevel   string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "taskforge",
	Version: Version,
	Short:   "Plan objectives into task graphs and assign them to workers",
	Long: `taskforge turns an objective into a dependency-aware task graph,
picks an execution strategy, assigns tasks to capability-profiled workers
and replans when conditions change.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints a hint for mapped errors.
// Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := RootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.Hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", cliErr.Hint)
	}
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: user config merged with ./.taskforge.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, NewCLIError("could not load configuration", "Check the YAML syntax and value ranges in your config file", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// loadRuntime wires an engine from configuration. Logs go to stderr so that
// command output stays machine-readable.
func loadRuntime() (*wiring.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, NewCLIError("invalid log settings", "Use log.level debug|info|warn|error and log.format text|json", err)
	}
	rt, err := wiring.Build(cfg, logger)
	if err != nil {
		return nil, MapError(err)
	}
	return rt, nil
}
