// Package util runs the external tools that some platform backends drive.
package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// HasCommand reports whether name resolves on PATH.
func HasCommand(name string) bool {
	if name == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

// CommandError is a failed run of an external command.
type CommandError struct {
	Name    string
	Args    []string
	Output   string
	TimedOut bool
	// Limit is the timeout given to Run, zero when only ctx bounded it.
	Limit time.Duration
	Err   error
}

func (e *CommandError) Error() string {
	cmdline := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	if e.TimedOut {
		if e.Limit > 0 {
			return fmt.Sprintf("%s timed out after %s", cmdline, e.Limit)
		}
		return cmdline + " timed out"
	}
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", cmdline, e.Err)
	}
	return fmt.Sprintf("%s: %v (output: %q)", cmdline, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Run executes name with args and returns its trimmed combined output. A
// positive timeout bounds the run on top of ctx.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := strings.TrimSpace(buf.String())
	if err == nil {
		return out, nil
	}

	cerr := &CommandError{Name: name, Args: args, Output: out, Limit: timeout, Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cerr.TimedOut = true
		cerr.Err = ctx.Err()
	}
	return out, cerr
}
