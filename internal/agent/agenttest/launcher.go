// Package agenttest provides a scripted agent.Launcher for tests.
package agenttest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ShayCichocki/hive/internal/agent"
)

// Script describes how a fake process behaves.
type Script struct {
	// Stdout and Stderr lines are written immediately.
	Stdout []string
	Stderr []string
	// ExitCode is returned when the script finishes on its own.
	ExitCode int
	// Block keeps the process alive until it is signalled or Release is called.
	Block bool
	// IgnoreTerm makes Terminate a no-op so only Kill stops the process.
	IgnoreTerm bool
	// OnStart runs before any output, e.g. to write a plan file.
	OnStart func(spec agent.ProcessSpec)
	// LaunchErr fails the launch.
	LaunchErr error
}

// Launcher launches fake processes chosen by command name.
type Launcher struct {
	mu       sync.Mutex
	scripts  map[string]Script
	fallback Script
	launched []agent.ProcessSpec
	procs    []*Process
}

// NewLauncher returns a launcher whose unknown commands exit 0 immediately.
func NewLauncher() *Launcher {
	return &Launcher{scripts: make(map[string]Script)}
}

// Set configures the script for command name.
func (l *Launcher) Set(name string, s Script) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scripts[name] = s
}

// Launched returns the specs launched so far.
func (l *Launcher) Launched() []agent.ProcessSpec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]agent.ProcessSpec(nil), l.launched...)
}

// Processes returns the processes launched so far.
func (l *Launcher) Processes() []*Process {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Process(nil), l.procs...)
}

// Launch implements agent.Launcher.
func (l *Launcher) Launch(ctx context.Context, spec agent.ProcessSpec) (agent.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	s, ok := l.scripts[spec.Name]
	if !ok {
		s = l.fallback
	}
	l.launched = append(l.launched, spec)
	pid := 1000 + len(l.launched)
	l.mu.Unlock()

	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	if s.OnStart != nil {
		s.OnStart(spec)
	}

	p := newProcess(pid, s)
	l.mu.Lock()
	l.procs = append(l.procs, p)
	l.mu.Unlock()
	go p.run()
	return p, nil
}

// Process is a fake agent.Process.
type Process struct {
	pid    int
	script Script

	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter

	mu       sync.Mutex
	exit     chan int
	exited   bool
	code     int
	finished chan struct{}
	termSeen bool
}

func newProcess(pid int, s Script) *Process {
	or, ow := io.Pipe()
	er, ew := io.Pipe()
	return &Process{
		pid:      pid,
		script:   s,
		stdoutR:  or,
		stdoutW:  ow,
		stderrR:  er,
		stderrW:  ew,
		exit:     make(chan int, 1),
		finished: make(chan struct{}),
	}
}

func (p *Process) run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, line := range p.script.Stdout {
			fmt.Fprintln(p.stdoutW, line)
		}
	}()
	go func() {
		defer wg.Done()
		for _, line := range p.script.Stderr {
			fmt.Fprintln(p.stderrW, line)
		}
	}()
	wg.Wait()

	code := p.script.ExitCode
	if p.script.Block {
		code = <-p.exit
	}
	p.mu.Lock()
	p.code = code
	p.exited = true
	p.mu.Unlock()
	_ = p.stdoutW.Close()
	_ = p.stderrW.Close()
	close(p.finished)
}

// Release lets a blocking script exit with code.
func (p *Process) Release(code int) {
	select {
	case p.exit <- code:
	default:
	}
}

// Terminated reports whether Terminate was called.
func (p *Process) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.termSeen
}

func (p *Process) PID() int          { return p.pid }
func (p *Process) Stdout() io.Reader { return p.stdoutR }
func (p *Process) Stderr() io.Reader { return p.stderrR }

func (p *Process) Wait() (int, error) {
	<-p.finished
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, nil
}

func (p *Process) Terminate() error {
	p.mu.Lock()
	p.termSeen = true
	p.mu.Unlock()
	if p.script.IgnoreTerm {
		return nil
	}
	p.Release(143)
	return nil
}

func (p *Process) Kill() error {
	p.Release(137)
	return nil
}

// ErrLaunch is a convenience launch failure.
var ErrLaunch = errors.New("exec: executable file not found in $PATH")

var _ agent.Launcher = (*Launcher)(nil)
var _ agent.Process = (*Process)(nil)
