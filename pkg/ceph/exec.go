package ceph

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/metrics"
	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/cockroachdb/errors"
)

// Runner executes an external command and returns its stdout
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError carries the stderr of a failed command
type CommandError struct {
	Command []string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		return "command " + strings.Join(e.Command, " ") + ": " + e.Err.Error()
	}
	return "command " + strings.Join(e.Command, " ") + ": " + e.Err.Error() + ": " + msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs commands on the local host with a timeout
type ExecRunner struct {
	// Timeout bounds a single invocation (default: 2 minutes)
	Timeout time.Duration
}

// NewExecRunner creates a runner with the given per-command timeout
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ExecRunner{Timeout: timeout}
}

// Run executes name with args. Failures are marked transient.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CommandDuration, filepath.Base(name))

	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			err = errors.Wrapf(err, "timed out after %s", r.Timeout)
		}
		return nil, errors.Mark(&CommandError{
			Command: append([]string{name}, args...),
			Stderr:  stderr.String(),
			Err:     err,
		}, types.ErrTransient)
	}

	return stdout.Bytes(), nil
}
