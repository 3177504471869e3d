//go:build !unix

package agent

import (
	"context"
	"errors"
)

// ExecLauncher is unavailable on this platform.
type ExecLauncher struct{}

// NewExecLauncher creates an ExecLauncher.
func NewExecLauncher() *ExecLauncher { return &ExecLauncher{} }

// Launch always fails: agent process groups need a unix platform.
func (l *ExecLauncher) Launch(context.Context, ProcessSpec) (Process, error) {
	return nil, errors.New("agent processes are only supported on unix platforms")
}
