// Package shell runs the external tools iossim wraps (idb, xcrun, xcodebuild).
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/devicelab-dev/iossim/pkg/logger"
)

// Runner executes external commands.
// Output captures stdout; Stream attaches the child to the given writers.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	Stream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error
}

// ExitError is returned when an external command exits non-zero.
type ExitError struct {
	Command []string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", CommandLine(e.Command), e.Code)
}

// CommandLine joins a command and its arguments for display.
func CommandLine(argv []string) string {
	return strings.Join(argv, " ")
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Binaries maps a logical tool name ("idb", "xcrun") to an override path.
	Binaries map[string]string
}

// NewExecRunner creates a runner with optional binary overrides.
func NewExecRunner(binaries map[string]string) *ExecRunner {
	return &ExecRunner{Binaries: binaries}
}

func (r *ExecRunner) resolve(name string) string {
	if p, ok := r.Binaries[name]; ok && p != "" {
		return p
	}
	return name
}

// Output runs the command and returns its stdout.
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	argv := append([]string{name}, args...)

	cmd := exec.CommandContext(ctx, r.resolve(name), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	out, err := cmd.Output()
	if err != nil {
		return out, wrapExecError(argv, err, stderr.String(), time.Since(start))
	}
	logger.Exec(argv, time.Since(start), 0, nil)
	return out, nil
}

// Stream runs the command with its output attached to stdout and stderr.
func (r *ExecRunner) Stream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	argv := append([]string{name}, args...)

	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cmd := exec.CommandContext(ctx, r.resolve(name), args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return wrapExecError(argv, err, "", time.Since(start))
	}
	logger.Exec(argv, time.Since(start), 0, nil)
	return nil
}

func wrapExecError(argv []string, err error, stderr string, elapsed time.Duration) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.Exec(argv, elapsed, exitErr.ExitCode(), err)
		return &ExitError{Command: argv, Code: exitErr.ExitCode(), Stderr: stderr}
	}
	logger.Exec(argv, elapsed, 0, err)
	return fmt.Errorf("failed to run %s: %w", argv[0], err)
}
