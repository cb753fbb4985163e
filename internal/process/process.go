// Package process manages the lifecycle of a spawned debugger binary.
//
// It wraps exec.Cmd with piped standard I/O, atomic exit tracking, and a
// graceful stop that allows a polite shutdown command a bounded grace period
// before the child is forcibly killed.
package process

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for the process package.
var (
	// ErrNotStarted is returned when operations require a started process.
	ErrNotStarted = errors.New("process not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("process already started")
)

// State represents the lifecycle state of a managed process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Process is a managed child process with piped standard I/O.
//
// Process is safe for concurrent use.
type Process struct {
	// ID uniquely identifies this process instance.
	ID string

	// Name is a human-readable name, e.g. "gdb".
	Name string

	// Stdin provides write access to the child's stdin.
	Stdin io.WriteCloser

	// Stdout provides read access to the child's stdout.
	Stdout io.ReadCloser

	// Stderr provides read access to the child's stderr.
	Stderr io.ReadCloser

	cmd     *exec.Cmd
	started time.Time

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error

	waitOnce sync.Once
}

// Start spawns the given command with piped stdin/stdout/stderr and begins
// tracking its exit.
func Start(name string, cmd *exec.Cmd) (*Process, error) {
	p := &Process{
		ID:   uuid.New().String(),
		Name: name,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)

	var createdPipes []io.Closer
	cleanup := func() {
		for _, c := range createdPipes {
			_ = c.Close()
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	p.Stdin = stdin
	createdPipes = append(createdPipes, stdin)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	p.Stdout = stdout
	createdPipes = append(createdPipes, stdout)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	p.Stderr = stderr
	createdPipes = append(createdPipes, stderr)

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p.started = time.Now()
	p.state.Store(int32(StateRunning))

	go p.waitLoop()

	return p, nil
}

// waitLoop waits for the child to exit and records the outcome.
func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()

		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()

		exitCode := 0
		state := StateExited

		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					state = StateKilled
				}
			} else {
				exitCode = -1
			}
		}

		p.exitCode.Store(int32(exitCode))
		p.state.Store(int32(state))
		close(p.done)
	})
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the process exit code, or -1 if it has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns any error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// PID returns the OS process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Runtime returns how long the process has been running.
func (p *Process) Runtime() time.Duration {
	if p.started.IsZero() {
		return 0
	}
	return time.Since(p.started)
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	if !p.IsRunning() {
		return ErrNotStarted
	}
	if p.cmd.Process == nil {
		return ErrNotStarted
	}
	return p.cmd.Process.Kill()
}

// Stop performs a graceful shutdown.
//
// The polite function, if non-nil, is given a chance to request shutdown
// (typically by writing a quit command to stdin). If the process has not
// exited within grace, it is killed. Stop is idempotent and returns once the
// process has exited.
func (p *Process) Stop(polite func(), grace time.Duration) {
	if !p.IsRunning() {
		return
	}

	if polite != nil {
		polite()
	}

	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.Kill()
		<-p.done
	}
}

// Close closes all I/O handles. It does not kill the process.
func (p *Process) Close() error {
	var errs []error

	for _, c := range []io.Closer{p.Stdin, p.Stdout, p.Stderr} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close process I/O: %v", errs)
	}
	return nil
}
