// Package transport provides the two debug transports: a polled serial
// connection to the target board and a spawned gdb process attached to a
// remote debug server.
//
// Both transports deliver complete protocol lines through a Callbacks
// struct; partial lines are buffered until their terminating newline
// arrives. Neither transport ever blocks the caller on I/O: the serial
// transport drains buffered bytes on a fixed poll interval and the process
// transport reads its pipes on dedicated goroutines.
package transport

import (
	"bytes"
	"errors"
)

// Kind identifies the active transport variety.
type Kind int

const (
	// KindNone means no transport is active.
	KindNone Kind = iota
	// KindSerial is the polled serial connection.
	KindSerial
	// KindGDB is the spawned gdb process.
	KindGDB
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSerial:
		return "serial"
	case KindGDB:
		return "gdb"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by Send after the transport has been closed.
var ErrClosed = errors.New("transport closed")

// Callbacks receives transport output. All callbacks are invoked from
// transport-owned goroutines; nil fields are skipped. No callback fires
// after Close returns.
type Callbacks struct {
	// OnLine is called once per complete protocol line, newline stripped.
	OnLine func(line string)

	// OnDiagnostic is called with out-of-band diagnostic text (gdb
	// stderr); it is surfaced, not parsed.
	OnDiagnostic func(text string)

	// OnClosed is called once when the transport ends on its own
	// (process exit, unrecoverable read failure). It is not called for
	// an explicit Close.
	OnClosed func(err error)
}

// Transport is a bidirectional debug link. Send writes one command line;
// received lines surface through Callbacks.
type Transport interface {
	// Kind identifies the transport variety.
	Kind() Kind

	// Send writes a single command, appending the line terminator.
	// It never blocks on a response.
	Send(cmd string) error

	// Close tears the transport down. It is idempotent and stops all
	// callbacks before releasing the underlying handle.
	Close() error
}

// lineSplitter accumulates streamed bytes and yields complete lines,
// retaining any trailing partial line for the next push.
type lineSplitter struct {
	buf bytes.Buffer
}

// push appends data and returns the complete lines it finished, in order.
func (s *lineSplitter) push(data []byte) []string {
	s.buf.Write(data)

	var lines []string
	for {
		raw := s.buf.Bytes()
		i := bytes.IndexByte(raw, '\n')
		if i < 0 {
			return lines
		}
		line := string(bytes.TrimRight(raw[:i], "\r"))
		s.buf.Next(i + 1)
		lines = append(lines, line)
	}
}

// rest returns whatever partial line remains buffered.
func (s *lineSplitter) rest() string {
	return s.buf.String()
}
