package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/coderun/internal/config"
	"github.com/michaelbrown/coderun/internal/execution"
	"github.com/michaelbrown/coderun/internal/logging"
)

const version = "0.1.0"

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "coderun",
	Short: "coderun - bounded execution of untrusted scripts",
	Long: `coderun runs caller-supplied code in a short-lived interpreter process
with a hard wall-clock timeout and returns whatever it printed.

It can serve the POST /run HTTP endpoint, run a single snippet from a
file or stdin, drive an interactive prompt, or expose the runner as an
MCP tool.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./coderun.yaml or $HOME/.coderun/coderun.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger and execution handler
// shared by every subcommand. Logs go to logOut.
func setup(logOut io.Writer) (*config.Config, *slog.Logger, *execution.Handler, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	return cfg, logger, execution.NewHandler(cfg.Sandbox(), logger), nil
}
