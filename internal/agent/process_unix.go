//go:build unix

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// ExecLauncher starts agent commands in their own session so signals reach
// every process the agent spawns.
type ExecLauncher struct{}

// NewExecLauncher creates an ExecLauncher.
func NewExecLauncher() *ExecLauncher { return &ExecLauncher{} }

// Launch starts spec. The context only bounds the start itself; stopping a
// running process is done through Terminate and Kill.
func (l *ExecLauncher) Launch(ctx context.Context, spec ProcessSpec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	// Background children may inherit the output pipes. WaitDelay bounds how
	// long Wait keeps copying from them once the agent itself has exited.
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.WaitDelay = OutputDrainDelay
	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}
	return &execProcess{
		cmd:     cmd,
		stdout:  stdoutR,
		stderr:  stderrR,
		stdoutW: stdoutW,
		stderrW: stderrW,
	}, nil
}

type execProcess struct {
	cmd              *exec.Cmd
	stdout, stderr   *io.PipeReader
	stdoutW, stderrW *io.PipeWriter
}

func (p *execProcess) PID() int          { return p.cmd.Process.Pid }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	_ = p.stdoutW.Close()
	_ = p.stderrW.Close()
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (p *execProcess) Terminate() error { return p.signal(syscall.SIGTERM) }
func (p *execProcess) Kill() error      { return p.signal(syscall.SIGKILL) }

func (p *execProcess) signal(sig syscall.Signal) error {
	err := syscall.Kill(-p.cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// Verify ExecLauncher implements Launcher at compile time.
var _ Launcher = (*ExecLauncher)(nil)
