// Package exec provides an interface for running helper commands such as the
// pull-request CLI.
package exec

import (
	"context"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows faking command execution in tests.
type CommandRunner interface {
	// Output runs a command and returns stdout and stderr separately.
	// The working directory is set to workDir if non-empty and env entries
	// are appended to the current environment.
	Output(ctx context.Context, workDir string, env []string, name string, args ...string) (stdout, stderr []byte, err error)

	// LookPath resolves name on PATH.
	LookPath(name string) (string, error)
}
