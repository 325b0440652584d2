package sandbox

import (
	"fmt"
	"os"
	"slices"
	"time"
)

const defaultPath = "/usr/local/bin:/usr/bin:/bin"

// Policy defines how the interpreter is invoked and bounded.
type Policy struct {
	Interpreter string        // Trusted interpreter binary (e.g. "node")
	InlineFlag  string        // Flag that makes the interpreter run its next argument as code (e.g. "-e")
	Timeout     time.Duration // Wall-clock budget per execution
	MaxOutput   int           // Per-stream capture cap in bytes
	Env         []string      // Host variables passed through to the child, besides PATH
	Network     bool          // Whether network access is allowed (docker backend only)
	Image       string        // Docker image to run (docker backend only)
	Images      []string      // Allowed Docker images
}

// DefaultPolicy returns the defaults for running untrusted JavaScript.
func DefaultPolicy() Policy {
	return Policy{
		Interpreter: "node",
		InlineFlag:  "-e",
		Timeout:     5 * time.Second,
		MaxOutput:   1 << 20,
		Network:     false,
		Image:       "node:22-slim",
		Images: []string{
			"node:22-slim",
			"python:3.12-slim",
		},
	}
}

// Validate reports whether the policy can be used to launch anything.
func (p Policy) Validate() error {
	if p.Interpreter == "" {
		return fmt.Errorf("interpreter is required")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", p.Timeout)
	}
	if p.MaxOutput <= 0 {
		return fmt.Errorf("max output must be positive, got %d", p.MaxOutput)
	}
	return nil
}

// Argv returns the fixed argument vector that runs code. The code is a
// single argument and never passes through a shell.
func (p Policy) Argv(code string) []string {
	if p.InlineFlag == "" {
		return []string{p.Interpreter, code}
	}
	return []string{p.Interpreter, p.InlineFlag, code}
}

// IsImageAllowed checks if an image is on the allowlist.
func (p Policy) IsImageAllowed(image string) bool {
	return slices.Contains(p.Images, image)
}

// environ builds the child environment: PATH plus the allowlisted
// variables that are set on the host.
func (p Policy) environ() []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = defaultPath
	}
	env := []string{"PATH=" + path}
	for _, name := range p.Env {
		if name == "PATH" {
			continue
		}
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	return env
}
