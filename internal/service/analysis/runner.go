package analysis

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner executes an analyzer script and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ScriptError carries the exit status and stderr of a failed run.
type ScriptError struct {
	Err    error
	Stderr string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script failed: %v", e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands as child processes in Dir.
type ExecRunner struct {
	Dir string
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &ScriptError{Err: err, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}
