// Package toolchain runs the external compiler, the system
// assembler/linker, and the compiled test binaries as subprocesses.
//
// All three are opaque collaborators: the harness observes only exit
// codes, captured output, and filesystem byproducts.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Result captures one subprocess invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// NotStartedError means the tool could not be launched at all (missing
// binary, bad permissions). Distinct from a nonzero exit: the test
// environment is broken, not the compiler under test.
type NotStartedError struct {
	Tool string
	Err  error
}

func (e *NotStartedError) Error() string {
	return fmt.Sprintf("tool %s could not be started: %v", e.Tool, e.Err)
}

func (e *NotStartedError) Unwrap() error { return e.Err }

// TimeoutError means a subprocess exceeded the configured stage timeout.
// The process has already been killed and waited on when this is returned.
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %s", e.Tool, e.Timeout)
}

// Invoker runs external tools with captured output.
//
// A zero Timeout waits indefinitely, matching the historical harness
// behavior of blocking on each subprocess until it exits. With a bounded
// Timeout the process is killed at the deadline and a TimeoutError is
// returned; the kill is always followed by a wait, so no orphaned
// processes survive an abort.
type Invoker struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Run executes argv with dir as the working directory.
//
// A nonzero exit code is not an error here; callers interpret exit codes
// per stage. The returned error is non-nil only for environment problems:
// launch failure or timeout.
func (iv *Invoker) Run(ctx context.Context, dir string, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("toolchain: empty command")
	}

	if iv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run() // waits for exit even when the context kills the process
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			res.ExitCode = -1
			return res, &TimeoutError{Tool: argv[0], Timeout: iv.Timeout}
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		default:
			return res, &NotStartedError{Tool: argv[0], Err: err}
		}
	}

	iv.logger().Debug("tool exited",
		"tool", argv[0],
		"exit_code", res.ExitCode,
		"duration", res.Duration,
	)
	return res, nil
}

func (iv *Invoker) logger() *slog.Logger {
	if iv.Logger != nil {
		return iv.Logger
	}
	return slog.Default()
}
