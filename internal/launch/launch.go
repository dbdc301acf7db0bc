// Package launch spawns the child processes the registry tracks and feeds
// their output into it. Processes are started in their own process group so
// termination reaches any grandchildren they spawn.
package launch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/Paintersrp/warden/internal/registry"
)

// Child output commonly carries long JSON lines; give the scanner room.
const scannerBufSize = 1024 * 1024

// Spec describes a process to launch.
type Spec struct {
	Command []string
	Dir     string
	Env     map[string]string
	Task    string
	Model   string
}

// Launcher starts processes directly on the host.
type Launcher struct {
	reg *registry.Registry
	log *slog.Logger
}

// New constructs a Launcher feeding the given registry.
func New(reg *registry.Registry, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{reg: reg, log: logger}
}

// StartAgent spawns an agent process under the caller-supplied run id and
// hands its child handle to the registry.
func (l *Launcher) StartAgent(runID, agentID int64, agentName string, spec Spec) error {
	proc, err := l.spawn(spec)
	if err != nil {
		return err
	}
	if err := l.reg.RegisterAgent(runID, agentID, agentName, proc.pid(), spec.Dir, spec.Task, spec.Model, proc); err != nil {
		// The process is already running; do not leak it behind a failed
		// registration.
		_ = proc.Terminate()
		return err
	}
	l.log.Info("agent process started", "run_id", runID, "agent", agentName, "pid", proc.pid())
	l.stream(runID, proc)
	return nil
}

// StartSession spawns an interactive session process. When sessionID is
// empty a fresh one is generated. Returns the registry-allocated run id and
// the session id in effect.
func (l *Launcher) StartSession(sessionID string, spec Spec) (int64, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	proc, err := l.spawn(spec)
	if err != nil {
		return 0, "", err
	}
	runID, err := l.reg.RegisterSession(sessionID, proc.pid(), spec.Dir, spec.Task, spec.Model)
	if err != nil {
		_ = proc.Terminate()
		return 0, "", err
	}

	// Session registration does not carry a handle; attach it now so kills
	// and liveness probes go through the handle instead of raw signals.
	l.reg.AttachChild(runID, proc)

	l.log.Info("session process started", "run_id", runID, "session_id", sessionID, "pid", proc.pid())
	l.stream(runID, proc)
	return runID, sessionID, nil
}

func (l *Launcher) spawn(spec Spec) (*process, error) {
	if len(spec.Command) == 0 {
		return nil, errors.New("launch: command is required")
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}

	env := os.Environ()
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Command[0], err)
	}

	return &process{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan struct{}),
	}, nil
}

// stream scans both pipes into the registry buffer and reaps the process
// once they drain. Wait must not run before the pipes are consumed.
func (l *Launcher) stream(runID int64, proc *process) {
	var wg sync.WaitGroup
	wg.Add(2)
	go l.scan(runID, proc.stdout, &wg)
	go l.scan(runID, proc.stderr, &wg)
	go func() {
		wg.Wait()
		err := proc.cmd.Wait()
		proc.finish(err)
		if err != nil {
			l.log.Warn("process exited", "run_id", runID, "error", err)
		} else {
			l.log.Info("process exited", "run_id", runID)
		}
	}()
}

func (l *Launcher) scan(runID int64, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scannerBufSize), scannerBufSize)
	for scanner.Scan() {
		l.reg.AppendOutput(runID, scanner.Text())
	}
}

// process implements registry.Child around a started exec.Cmd.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}

	stdout io.ReadCloser
	stderr io.ReadCloser

	finishOnce sync.Once
	waitErr    error
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) finish(err error) {
	p.finishOnce.Do(func() {
		p.waitErr = err
		close(p.done)
	})
}

// Terminate kills the process group without waiting for the exit.
func (p *process) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return terminateTree(p.cmd.Process)
}

// Exited reports whether the process has been reaped.
func (p *process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
