package agent

import (
	"context"
	"io"
	"time"
)

// OutputDrainDelay bounds how long output is still collected after the
// agent exits while a background child holds its streams open.
const OutputDrainDelay = 500 * time.Millisecond

// ProcessSpec describes a command to launch.
type ProcessSpec struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the supervisor's environment.
	Env []string
}

// Process is a launched agent command.
type Process interface {
	// PID returns the operating system process id.
	PID() int
	// Stdout and Stderr return the output streams. Both reach EOF no later
	// than Wait returning, even if a spawned child still holds them.
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait blocks until the process exits and returns the exit code. The
	// streams must be read concurrently or Wait may not return. err is set
	// when the exit status could not be determined.
	Wait() (code int, err error)
	// Terminate asks the whole process group to stop.
	Terminate() error
	// Kill forcibly stops the whole process group.
	Kill() error
}

// Launcher starts processes.
type Launcher interface {
	Launch(ctx context.Context, spec ProcessSpec) (Process, error)
}
