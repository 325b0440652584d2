//go:build !unix

package sandbox

import "os/exec"

// Without process groups only the direct child is killed, by the default
// exec.Cmd.Cancel.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error { return nil }
