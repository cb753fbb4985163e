package transport

import (
	"bufio"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mcuforge/ember/internal/process"
)

// GDBConfig configures a spawned-debugger connection.
type GDBConfig struct {
	// Path is the gdb binary; empty uses "gdb".
	Path string

	// ELF is the target firmware image handed to gdb.
	ELF string

	// Server is the remote debug server (host:port) to attach to.
	Server string

	// StopGrace bounds the polite "quit" before the child is killed;
	// 0 uses one second.
	StopGrace time.Duration
}

// GDB is the spawned-process transport. It runs gdb in machine-interface
// mode and attaches it to a remote debug server.
type GDB struct {
	proc *process.Process
	cfg  GDBConfig
	cb   Callbacks

	closed atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// StartGDB spawns gdb in MI mode against the configured ELF and issues the
// target remote attach. Output callbacks begin before this returns.
func StartGDB(cfg GDBConfig, cb Callbacks) (*GDB, error) {
	if cfg.Path == "" {
		cfg.Path = "gdb"
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = time.Second
	}

	cmd := exec.Command(cfg.Path, "-q", "-interpreter=mi", cfg.ELF)
	proc, err := process.Start("gdb", cmd)
	if err != nil {
		return nil, fmt.Errorf("spawn gdb: %w", err)
	}

	t := &GDB{proc: proc, cfg: cfg, cb: cb}

	go t.readStdout()
	go t.readStderr()
	go t.watchExit()

	if cfg.Server != "" {
		if err := t.Send("target remote " + cfg.Server); err != nil {
			t.teardown()
			return nil, fmt.Errorf("attach to %s: %w", cfg.Server, err)
		}
	}

	log.WithFields(log.Fields{"gdb": cfg.Path, "server": cfg.Server}).
		Info("gdb debug transport connected")

	return t, nil
}

// Kind implements Transport.
func (t *GDB) Kind() Kind {
	return KindGDB
}

// Send writes one command line to gdb's stdin.
func (t *GDB) Send(cmd string) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := fmt.Fprintf(t.proc.Stdin, "%s\n", cmd); err != nil {
		return fmt.Errorf("gdb write: %w", err)
	}
	return nil
}

// readStdout buffers gdb stdout and forwards complete lines, retaining any
// trailing partial line until its newline arrives.
func (t *GDB) readStdout() {
	var split lineSplitter
	buf := make([]byte, 4096)

	for {
		n, err := t.proc.Stdout.Read(buf)
		if n > 0 {
			for _, line := range split.push(buf[:n]) {
				t.emitLine(line)
			}
		}
		if err != nil {
			if rest := split.rest(); rest != "" {
				t.emitLine(rest)
			}
			return
		}
	}
}

// readStderr surfaces gdb stderr as diagnostic text. It is never parsed.
func (t *GDB) readStderr() {
	scanner := bufio.NewScanner(t.proc.Stderr)
	for scanner.Scan() {
		if t.closed.Load() {
			return
		}
		if t.cb.OnDiagnostic != nil {
			t.cb.OnDiagnostic(scanner.Text())
		}
	}
}

// watchExit reports the child's exit unless the transport was closed
// explicitly.
func (t *GDB) watchExit() {
	<-t.proc.Done()

	// Exactly one of watchExit and Close claims the transport.
	if !t.closed.CompareAndSwap(false, true) {
		return
	}

	log.WithField("code", t.proc.ExitCode()).Info("gdb process exited")

	if t.cb.OnClosed != nil {
		t.cb.OnClosed(t.proc.ExitError())
	}
}

func (t *GDB) emitLine(line string) {
	if t.closed.Load() {
		return
	}
	if t.cb.OnLine != nil {
		t.cb.OnLine(line)
	}
}

// Close shuts gdb down: a polite "quit" first, then a forced kill after the
// grace period. Idempotent; no callback fires after it returns.
func (t *GDB) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.teardown()
	})
	return nil
}

func (t *GDB) teardown() {
	t.closed.Store(true)

	t.proc.Stop(func() {
		t.writeMu.Lock()
		_, _ = fmt.Fprintln(t.proc.Stdin, "quit")
		t.writeMu.Unlock()
	}, t.cfg.StopGrace)

	_ = t.proc.Close()
}
