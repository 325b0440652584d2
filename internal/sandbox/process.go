package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// waitDelay bounds how long Wait keeps reading pipes after the process
// has exited or been killed. Grandchildren that inherited stdout would
// otherwise hold Wait open past the timeout.
const waitDelay = 500 * time.Millisecond

// ProcessSandbox runs the interpreter directly on the host, one process
// group per execution.
type ProcessSandbox struct {
	Policy Policy
}

// NewProcessSandbox creates a sandbox with the given policy.
func NewProcessSandbox(policy Policy) *ProcessSandbox {
	return &ProcessSandbox{Policy: policy}
}

func (p *ProcessSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if err := p.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	return run(ctx, p.Policy, launch{
		runID: uuid.New().String(),
		argv:  p.Policy.Argv(opts.Code),
		env:   p.Policy.environ(),
	}), nil
}

// launch is one concrete process invocation.
type launch struct {
	runID  string
	argv   []string
	env    []string
	onKill func() // called after a timed out or canceled process was killed
}

// run spawns l.argv in a fresh temp directory and waits for it, bounded by
// policy.Timeout. The process group is killed on expiry and again after a
// normal exit so nothing the code started survives the call.
func run(parent context.Context, policy Policy, l launch) *ExecResult {
	start := time.Now()
	res := &ExecResult{RunID: l.runID}
	defer func() { res.Duration = time.Since(start) }()

	workDir, err := os.MkdirTemp("", "coderun-*")
	if err != nil {
		res.Status = StatusLaunchFailed
		res.Err = fmt.Errorf("creating work dir: %w", err)
		return res
	}
	defer os.RemoveAll(workDir)

	ctx, cancel := context.WithTimeout(parent, policy.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	cmd.Dir = workDir
	cmd.Env = l.env
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	stdout := newCappedBuffer(policy.MaxOutput)
	stderr := newCappedBuffer(policy.MaxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		if parent.Err() != nil {
			res.Status = StatusCanceled
			res.ExitCode = -1
			return res
		}
		res.Status = StatusLaunchFailed
		res.Err = fmt.Errorf("starting %s: %w", l.argv[0], err)
		return res
	}

	waitErr := cmd.Wait()
	_ = killProcessGroup(cmd)

	if waitErr != nil && ctx.Err() != nil {
		if l.onKill != nil {
			l.onKill()
		}
		if errors.Is(parent.Err(), context.Canceled) {
			res.Status = StatusCanceled
		} else {
			res.Status = StatusTimedOut
		}
		res.ExitCode = -1
		return res
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// Exited cleanly; a background child held the pipes open.
		case cmd.ProcessState != nil:
			res.ExitCode = cmd.ProcessState.ExitCode()
		default:
			res.Status = StatusLaunchFailed
			res.Err = fmt.Errorf("waiting for %s: %w", l.argv[0], waitErr)
			return res
		}
	}

	res.Status = StatusCompleted
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Truncated = stdout.truncated || stderr.truncated
	return res
}
