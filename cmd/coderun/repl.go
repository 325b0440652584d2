package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/coderun/internal/execution"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run snippets interactively",
	Long: `Start an interactive prompt. Each entered line is run as a separate
snippet; end a line with \ to continue it on the next one. Every snippet
gets a fresh interpreter process, so no state carries over.

Examples:
  coderun repl`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// lineReader is the part of *readline.Instance the prompt loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

const (
	promptPrimary  = "\033[36mrun>\033[0m "
	promptContinue = "\033[36m...>\033[0m "
)

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, _, handler, err := setup(io.Discard)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptPrimary,
		HistoryFile:     filepath.Join(os.TempDir(), "coderun_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "coderun %s | %s %s | timeout %s\n", version, cfg.Runner.Interpreter, cfg.Runner.InlineFlag, cfg.Runner.Timeout)
	fmt.Fprintf(out, "Type /help for commands, /quit to exit\n\n")

	return repl(cmd.Context(), rl, handler, out)
}

// repl reads snippets from rl until EOF, interrupt or /quit.
func repl(ctx context.Context, rl lineReader, handler *execution.Handler, out io.Writer) error {
	var pending strings.Builder

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if cont, ok := strings.CutSuffix(line, `\`); ok {
			pending.WriteString(cont)
			pending.WriteString("\n")
			rl.SetPrompt(promptContinue)
			continue
		}
		pending.WriteString(line)
		code := pending.String()
		pending.Reset()
		rl.SetPrompt(promptPrimary)

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "/") {
			if quit := handleCommand(trimmed, out); quit {
				return nil
			}
			continue
		}

		resp := runSnippet(ctx, handler, code)
		if resp.Status == http.StatusOK {
			fmt.Fprint(out, resp.Body)
			if resp.Body != "" && !strings.HasSuffix(resp.Body, "\n") {
				fmt.Fprintln(out)
			}
		} else {
			fmt.Fprintf(out, "\033[31merror: %s\033[0m\n", resp.Body)
		}
	}
}

// runSnippet executes code with its own interrupt scope: Ctrl+C while it
// runs cancels this snippet only, and the prompt keeps going.
func runSnippet(ctx context.Context, handler *execution.Handler, code string) execution.Response {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return handler.Handle(ctx, execution.Request{Code: code})
}

// handleCommand runs a slash command and reports whether the prompt
// should exit.
func handleCommand(input string, out io.Writer) bool {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/exit", "/q":
		fmt.Fprintln(out, "Goodbye!")
		return true
	case "/help":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  /help     - Show this help")
		fmt.Fprintln(out, "  /quit     - Exit")
		fmt.Fprintln(out, `End a line with \ to continue the snippet on the next line.`)
		fmt.Fprintln(out)
	default:
		fmt.Fprintf(out, "Unknown command: %s (try /help)\n\n", input)
	}
	return false
}
