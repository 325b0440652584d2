package sandbox

import (
	"context"
	"time"
)

// Status classifies how an execution ended.
type Status string

const (
	StatusCompleted    Status = "completed"
	StatusTimedOut     Status = "timed_out"
	StatusLaunchFailed Status = "launch_failed"
	StatusCanceled     Status = "canceled"
)

// ExecOpts describes a code execution request.
type ExecOpts struct {
	Code string // Source code passed inline to the interpreter
}

// ExecResult is the output of a sandboxed execution.
type ExecResult struct {
	RunID     string
	Status    Status
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool  // true if either stream exceeded the output cap
	Err       error // launch failure cause, set only for StatusLaunchFailed
	Duration  time.Duration
}

// Output returns stdout followed by stderr.
func (r *ExecResult) Output() string {
	return r.Stdout + r.Stderr
}

// Sandbox runs code in an isolated environment.
//
// Exec reports launch failures, timeouts and cancellation through
// ExecResult.Status. A non-nil error means the sandbox itself is
// misconfigured and nothing was started.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error)
}
