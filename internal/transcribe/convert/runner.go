package convert

import (
	"context"
	"os/exec"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner implements Runner using os/exec.
type execRunner struct{}

// NewRunner creates a Runner backed by os/exec.
func NewRunner() Runner {
	return execRunner{}
}

// Run executes the command and collects stdout and stderr.
func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
