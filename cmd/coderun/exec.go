package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/coderun/internal/execution"
)

var execCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: "Run a snippet once and print its output",
	Long: `Run code from a file, or from stdin when the file is "-" or omitted,
through the same validation, timeout and output handling as the HTTP
endpoint. Exits non-zero if the execution did not complete.

Examples:
  coderun exec script.js
  echo "console.log(1 + 1)" | coderun exec`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecCmd,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExecCmd(cmd *cobra.Command, args []string) error {
	code, err := readCode(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	_, _, handler, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runOnce(ctx, handler, code, cmd.OutOrStdout())
}

// readCode returns the contents of args[0], or of stdin when no file or
// "-" is given.
func readCode(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

// runOnce executes code and writes the program output to out. Any other
// outcome comes back as an error carrying the failure message.
func runOnce(ctx context.Context, handler *execution.Handler, code string, out io.Writer) error {
	resp := handler.Handle(ctx, execution.Request{Code: code})
	if resp.Status == http.StatusOK {
		fmt.Fprint(out, resp.Body)
		return nil
	}
	return fmt.Errorf("execution failed: %s", resp.Body)
}
