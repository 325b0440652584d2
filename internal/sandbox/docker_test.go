package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeDocker writes a stand-in docker CLI that prints its arguments one
// per line.
func fakeDocker(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	path := filepath.Join(t.TempDir(), "docker")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDockerSandbox_ImageNotAllowed(t *testing.T) {
	policy := DefaultPolicy()
	policy.Image = "evil:latest"
	sb := NewDockerSandbox(policy, "")

	_, err := sb.Exec(context.Background(), ExecOpts{Code: "1"})
	if err == nil {
		t.Fatal("expected error for image outside allowlist")
	}
	if !strings.Contains(err.Error(), "allowlist") {
		t.Errorf("error = %q, want to mention allowlist", err)
	}
}

func TestDockerSandbox_Argv(t *testing.T) {
	policy := DefaultPolicy()
	policy.Env = []string{"TZ"}
	sb := NewDockerSandbox(policy, fakeDocker(t))

	res, err := sb.Exec(context.Background(), ExecOpts{Code: "console.log(1)"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("Status = %q, want %q (err: %v)", res.Status, StatusCompleted, res.Err)
	}

	args := strings.Split(strings.TrimSuffix(res.Stdout, "\n"), "\n")
	want := []string{
		"run", "--rm",
		"--name", "coderun-" + res.RunID,
		"--network=none",
		"-e", "TZ",
		"node:22-slim", "node", "-e", "console.log(1)",
	}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Errorf("docker args = %q, want %q", args, want)
	}
}

func TestDockerSandbox_NetworkAllowed(t *testing.T) {
	policy := DefaultPolicy()
	policy.Network = true
	sb := NewDockerSandbox(policy, "docker")

	for _, arg := range sb.argv("c", "x") {
		if arg == "--network=none" {
			t.Fatal("--network=none present with Network enabled")
		}
	}
}

func TestDockerSandbox_TimeoutKillsContainer(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "calls")
	path := filepath.Join(dir, "docker")
	script := "#!/bin/sh\necho \"$1 $2\" >> " + log + "\nif [ \"$1\" = run ]; then sleep 30; fi\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	policy := DefaultPolicy()
	policy.Timeout = 200 * time.Millisecond
	sb := NewDockerSandbox(policy, path)

	res, err := sb.Exec(context.Background(), ExecOpts{Code: "for(;;){}"})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Status != StatusTimedOut {
		t.Fatalf("Status = %q, want %q", res.Status, StatusTimedOut)
	}

	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "kill coderun-"+res.RunID) {
		t.Errorf("calls = %q, want a docker kill for the container", data)
	}
}
