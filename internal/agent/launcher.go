package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync/atomic"
)

// Process is a launched target that outlives the request that started it.
type Process interface {
	PID() int
	Done() <-chan struct{}
	// ExitCode is valid once Done is closed.
	ExitCode() int
}

// Launcher starts the target the agent connects to.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Process, error)

func (f LauncherFunc) Launch(ctx context.Context) (Process, error) {
	return f(ctx)
}

// ExecLauncher starts the editor as a detached child process.
type ExecLauncher struct {
	Argv   []string
	Dir    string
	Logger *slog.Logger
}

// Launch starts Argv. The child is not bound to ctx: the editor keeps
// running after the request that launched it completes.
func (l ExecLauncher) Launch(_ context.Context) (Process, error) {
	if len(l.Argv) == 0 || l.Argv[0] == "" {
		return nil, errors.New("editor command is empty")
	}

	cmd := exec.Command(l.Argv[0], l.Argv[1:]...)
	cmd.Dir = l.Dir
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Argv[0], err)
	}

	proc := &execProcess{cmd: cmd, done: make(chan struct{}), logger: l.Logger}
	go proc.wait()
	return proc, nil
}

type execProcess struct {
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode atomic.Int64
	logger   *slog.Logger
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) ExitCode() int {
	return int(p.exitCode.Load())
}

func (p *execProcess) wait() {
	defer close(p.done)

	err := p.cmd.Wait()
	if err == nil {
		return
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	p.exitCode.Store(int64(code))
	if p.logger != nil {
		p.logger.Warn("target process exited", "pid", p.PID(), "exit_code", code, "error", err.Error())
	}
}
