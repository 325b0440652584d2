// Package execution turns a single code submission into a response: it
// validates the request, runs it through a sandbox and maps the outcome to
// a body and status code.
package execution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/michaelbrown/coderun/internal/sandbox"
)

// Request is one caller-submitted unit of code.
type Request struct {
	Code string
}

// Response is what goes back to the caller.
type Response struct {
	Body   string
	Status int
}

// Handler validates requests and delegates them to a Sandbox. It holds no
// per-request state and is safe for concurrent use.
type Handler struct {
	sandbox sandbox.Sandbox
	logger  *slog.Logger
}

// NewHandler creates a Handler. A nil logger discards logs.
func NewHandler(sb sandbox.Sandbox, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{sandbox: sb, logger: logger}
}

// Handle runs req and always produces a response.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	out, err := h.Execute(ctx, req)
	if err != nil {
		return Response{Body: err.Error(), Status: StatusFor(err)}
	}
	return Response{Body: out, Status: StatusFor(nil)}
}

// Execute runs req and returns the combined stdout and stderr of a
// completed execution. Failures are returned as ErrNoCode, *TimeoutError,
// *LaunchError, *CanceledError or *UnexpectedError.
func (h *Handler) Execute(ctx context.Context, req Request) (out string, err error) {
	if req.Code == "" {
		return "", ErrNoCode
	}

	defer func() {
		if v := recover(); v != nil {
			h.logger.Error("sandbox panicked", "panic", v)
			out, err = "", &UnexpectedError{Value: v}
		}
	}()

	res, err := h.sandbox.Exec(ctx, sandbox.ExecOpts{Code: req.Code})
	if err != nil {
		h.logger.Error("sandbox rejected execution", "error", err)
		return "", &LaunchError{Err: err}
	}
	if res == nil {
		return "", &UnexpectedError{Value: fmt.Errorf("sandbox returned no result")}
	}

	log := h.logger.With(
		"run_id", res.RunID,
		"status", string(res.Status),
		"duration", res.Duration,
	)

	switch res.Status {
	case sandbox.StatusCompleted:
		log.Info("execution completed",
			"exit_code", res.ExitCode,
			"stdout_bytes", len(res.Stdout),
			"stderr_bytes", len(res.Stderr),
			"truncated", res.Truncated,
		)
		return res.Output(), nil
	case sandbox.StatusTimedOut:
		log.Warn("execution timed out")
		return "", &TimeoutError{}
	case sandbox.StatusCanceled:
		log.Info("execution canceled")
		return "", &CanceledError{}
	case sandbox.StatusLaunchFailed:
		log.Error("execution failed to launch", "error", res.Err)
		if res.Err == nil {
			return "", &LaunchError{Err: fmt.Errorf("interpreter failed to launch")}
		}
		return "", &LaunchError{Err: res.Err}
	default:
		return "", &UnexpectedError{Value: fmt.Errorf("unknown execution status %q", res.Status)}
	}
}
