package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func shSandbox(t *testing.T) *ProcessSandbox {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	return NewProcessSandbox(Policy{
		Interpreter: "sh",
		InlineFlag:  "-c",
		Timeout:     5 * time.Second,
		MaxOutput:   1 << 20,
	})
}

func execCode(t *testing.T, sb Sandbox, code string) *ExecResult {
	t.Helper()
	res, err := sb.Exec(context.Background(), ExecOpts{Code: code})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	return res
}

func TestExec_Stdout(t *testing.T) {
	res := execCode(t, shSandbox(t), "echo hello")
	if res.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q", res.Status, StatusCompleted)
	}
	if res.Output() != "hello\n" {
		t.Errorf("Output() = %q, want %q", res.Output(), "hello\n")
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestExec_StdoutBeforeStderr(t *testing.T) {
	res := execCode(t, shSandbox(t), "echo err >&2; echo out")
	if res.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q", res.Status, StatusCompleted)
	}
	if res.Stdout != "out\n" || res.Stderr != "err\n" {
		t.Errorf("Stdout = %q, Stderr = %q", res.Stdout, res.Stderr)
	}
	if res.Output() != "out\nerr\n" {
		t.Errorf("Output() = %q, want stdout then stderr", res.Output())
	}
}

func TestExec_StderrOnlyIsCompleted(t *testing.T) {
	res := execCode(t, shSandbox(t), "echo boom >&2; exit 1")
	if res.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q", res.Status, StatusCompleted)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if res.Output() != "boom\n" {
		t.Errorf("Output() = %q, want %q", res.Output(), "boom\n")
	}
}

func TestExec_NonZeroExit(t *testing.T) {
	res := execCode(t, shSandbox(t), "exit 3")
	if res.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q", res.Status, StatusCompleted)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestExec_InterpreterNotFound(t *testing.T) {
	sb := NewProcessSandbox(Policy{
		Interpreter: "nonexistent-interpreter-xyz-123",
		InlineFlag:  "-e",
		Timeout:     time.Second,
		MaxOutput:   1024,
	})
	res := execCode(t, sb, "1")
	if res.Status != StatusLaunchFailed {
		t.Fatalf("Status = %q, want %q", res.Status, StatusLaunchFailed)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "nonexistent-interpreter-xyz-123") {
		t.Errorf("Err = %v, want to mention the interpreter", res.Err)
	}
}

func TestExec_InvalidPolicy(t *testing.T) {
	sb := NewProcessSandbox(Policy{Timeout: time.Second, MaxOutput: 1})
	if _, err := sb.Exec(context.Background(), ExecOpts{Code: "1"}); err == nil {
		t.Fatal("expected error for empty interpreter")
	}
}

func TestExec_Timeout(t *testing.T) {
	sb := shSandbox(t)
	sb.Policy.Timeout = 200 * time.Millisecond

	start := time.Now()
	res := execCode(t, sb, "echo partial; while :; do :; done")
	elapsed := time.Since(start)

	if res.Status != StatusTimedOut {
		t.Fatalf("Status = %q, want %q", res.Status, StatusTimedOut)
	}
	if elapsed > sb.Policy.Timeout+time.Second {
		t.Errorf("took %s, want <= %s", elapsed, sb.Policy.Timeout+time.Second)
	}
	if res.Output() != "" {
		t.Errorf("Output() = %q, want partial output discarded", res.Output())
	}
}

func TestExec_TimeoutWithBackgroundPipeHolder(t *testing.T) {
	sb := shSandbox(t)
	sb.Policy.Timeout = 200 * time.Millisecond

	start := time.Now()
	res := execCode(t, sb, "sleep 30 & sleep 30")
	if res.Status != StatusTimedOut {
		t.Fatalf("Status = %q, want %q", res.Status, StatusTimedOut)
	}
	if elapsed := time.Since(start); elapsed > sb.Policy.Timeout+time.Second {
		t.Errorf("took %s, want <= %s", elapsed, sb.Policy.Timeout+time.Second)
	}
}

func TestExec_ParentCanceled(t *testing.T) {
	sb := shSandbox(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res, err := sb.Exec(ctx, ExecOpts{Code: "sleep 10"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Status != StatusCanceled {
		t.Errorf("Status = %q, want %q", res.Status, StatusCanceled)
	}
}

func TestExec_ParentCanceledBeforeStart(t *testing.T) {
	sb := shSandbox(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := sb.Exec(ctx, ExecOpts{Code: "echo never"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Status != StatusCanceled {
		t.Errorf("Status = %q, want %q (err %v)", res.Status, StatusCanceled, res.Err)
	}
	if res.Output() != "" {
		t.Errorf("Output() = %q, want empty", res.Output())
	}
}

func TestExec_NoShellInterpolation(t *testing.T) {
	if _, err := exec.LookPath("printf"); err != nil {
		t.Skip("printf not found in PATH")
	}
	sb := NewProcessSandbox(Policy{
		Interpreter: "printf",
		InlineFlag:  "%s",
		Timeout:     time.Second,
		MaxOutput:   1024,
	})
	code := "$(echo injected); `id` && echo x | cat"
	res := execCode(t, sb, code)
	if res.Output() != code {
		t.Errorf("Output() = %q, want code passed through verbatim", res.Output())
	}
}

func TestExec_OutputTruncation(t *testing.T) {
	sb := shSandbox(t)
	sb.Policy.MaxOutput = 100

	res := execCode(t, sb, "dd if=/dev/zero bs=1000 count=1 2>/dev/null")
	if res.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q", res.Status, StatusCompleted)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Stdout) != 100 {
		t.Errorf("len(Stdout) = %d, want 100", len(res.Stdout))
	}
}

func TestExec_EnvironmentIsExplicit(t *testing.T) {
	t.Setenv("CODERUN_TEST_SECRET", "s3cret")

	sb := shSandbox(t)
	res := execCode(t, sb, `echo "[$CODERUN_TEST_SECRET]"`)
	if res.Output() != "[]\n" {
		t.Errorf("Output() = %q, want variable hidden from child", res.Output())
	}

	sb.Policy.Env = []string{"CODERUN_TEST_SECRET"}
	res = execCode(t, sb, `echo "[$CODERUN_TEST_SECRET]"`)
	if res.Output() != "[s3cret]\n" {
		t.Errorf("Output() = %q, want allowlisted variable passed through", res.Output())
	}
}

func TestExec_RunsInScratchDir(t *testing.T) {
	res := execCode(t, shSandbox(t), "pwd")
	dir := strings.TrimSpace(res.Stdout)
	if !strings.HasPrefix(filepath.Base(dir), "coderun-") {
		t.Errorf("pwd = %q, want a coderun-* temp dir", dir)
	}
}

func TestExec_Idempotent(t *testing.T) {
	sb := shSandbox(t)
	first := execCode(t, sb, "echo same")
	second := execCode(t, sb, "echo same")
	if first.Output() != second.Output() {
		t.Errorf("outputs differ: %q vs %q", first.Output(), second.Output())
	}
	if first.RunID == second.RunID {
		t.Error("RunID reused across executions")
	}
}

func TestExec_ConcurrentIsolation(t *testing.T) {
	sb := shSandbox(t)

	const n = 8
	var wg sync.WaitGroup
	outputs := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := sb.Exec(context.Background(), ExecOpts{Code: fmt.Sprintf("echo %d", i)})
			if err != nil {
				t.Errorf("Exec %d: %v", i, err)
				return
			}
			outputs[i] = res.Output()
		}()
	}
	wg.Wait()

	for i, got := range outputs {
		if want := fmt.Sprintf("%d\n", i); got != want {
			t.Errorf("outputs[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestExec_Node(t *testing.T) {
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not found in PATH")
	}
	sb := NewProcessSandbox(DefaultPolicy())

	res := execCode(t, sb, "console.log('hi')")
	if res.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q (err: %v)", res.Status, StatusCompleted, res.Err)
	}
	if !strings.Contains(res.Output(), "hi") {
		t.Errorf("Output() = %q, want to contain %q", res.Output(), "hi")
	}
}
