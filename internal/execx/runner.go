// Package execx abstracts external command execution so components that
// shell out to yt-dlp, ffmpeg or fpcalc can be tested without the binaries.
package execx

import (
	"context"
	"os/exec"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
	Output(ctx context.Context, name string, args []string) ([]byte, error)
}

// OSRunner runs commands with os/exec.
type OSRunner struct{}

func (OSRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (OSRunner) Output(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
