package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// DockerSandbox runs the interpreter inside a throwaway Docker container.
// The docker CLI is the supervised process; the container is killed by
// name when the execution times out or is canceled.
type DockerSandbox struct {
	Policy Policy
	Binary string // docker CLI, resolved via PATH
}

// NewDockerSandbox creates a sandbox with the given policy.
func NewDockerSandbox(policy Policy, binary string) *DockerSandbox {
	if binary == "" {
		binary = "docker"
	}
	return &DockerSandbox{Policy: policy, Binary: binary}
}

func (d *DockerSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if err := d.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if !d.Policy.IsImageAllowed(d.Policy.Image) {
		return nil, fmt.Errorf("image %q not in allowlist", d.Policy.Image)
	}

	runID := uuid.New().String()
	name := "coderun-" + runID

	return run(ctx, d.Policy, launch{
		runID:  runID,
		argv:   d.argv(name, opts.Code),
		env:    os.Environ(),
		onKill: func() { d.kill(name) },
	}), nil
}

// argv builds the docker CLI invocation. Only the allowlisted variables
// are forwarded into the container.
func (d *DockerSandbox) argv(name, code string) []string {
	args := []string{
		d.Binary, "run", "--rm",
		"--name", name,
	}

	if !d.Policy.Network {
		args = append(args, "--network=none")
	}
	for _, env := range d.Policy.Env {
		args = append(args, "-e", env)
	}

	args = append(args, d.Policy.Image)
	return append(args, d.Policy.Argv(code)...)
}

// kill removes a container whose CLI process was already killed.
func (d *DockerSandbox) kill(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if out, err := exec.CommandContext(ctx, d.Binary, "kill", name).CombinedOutput(); err != nil {
		slog.Warn("docker kill failed", "container", name, "error", err, "output", string(out))
	}
}
