//go:build unix

package main

import (
	"bytes"
	"context"
	"strings"
	"syscall"
	"testing"
	"time"
)

// interruptingReader sends SIGINT to the test process shortly after
// handing out its first line.
type interruptingReader struct {
	scriptedReader
	sent bool
}

func (r *interruptingReader) Readline() (string, error) {
	line, err := r.scriptedReader.Readline()
	if err == nil && !r.sent {
		r.sent = true
		time.AfterFunc(300*time.Millisecond, func() {
			syscall.Kill(syscall.Getpid(), syscall.SIGINT)
		})
	}
	return line, err
}

func TestRepl_InterruptCancelsOnlyCurrentSnippet(t *testing.T) {
	h := shHandler(t)
	rl := &interruptingReader{scriptedReader: scriptedReader{lines: []string{"sleep 5", "echo after"}}}

	var out bytes.Buffer
	if err := repl(context.Background(), rl, h, &out); err != nil {
		t.Fatalf("repl: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "error: Code execution canceled") {
		t.Errorf("first snippet should be canceled: %q", got)
	}
	if !strings.Contains(got, "after\n") {
		t.Errorf("second snippet did not run after interrupt: %q", got)
	}
	if strings.Contains(got, "starting sh") {
		t.Errorf("second snippet saw a canceled context: %q", got)
	}
}
