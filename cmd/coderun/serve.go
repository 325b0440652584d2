package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/coderun/internal/server"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the code execution HTTP server",
	Long: `Start the HTTP server exposing POST /run.

The request body is form-encoded with a single "code" field. The
response is the program's stdout followed by its stderr as text/plain.

Examples:
  coderun serve
  coderun serve --port 9090
  curl -d "code=console.log('hi')" localhost:5000/run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, handler, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	logger.Info("runner configured",
		"backend", cfg.Runner.Backend,
		"interpreter", cfg.Runner.Interpreter,
		"timeout", cfg.Runner.Timeout,
	)

	srv := server.New(cfg.Server, handler, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(port) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return srv.Shutdown(context.Background())
}
