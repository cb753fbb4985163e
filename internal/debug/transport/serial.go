package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// SerialConfig configures a serial debug connection.
type SerialConfig struct {
	// Port is the serial device, e.g. /dev/ttyACM0.
	Port string

	// Baud is the connection baud rate; 0 uses 115200.
	Baud int

	// PollInterval is how often buffered bytes are drained; 0 uses 100ms.
	PollInterval time.Duration

	// ReadTimeout bounds one read so the poll never blocks; 0 uses 100ms.
	ReadTimeout time.Duration

	// Handshake, when non-empty, is sent once right after the port opens.
	Handshake string

	// Farewell, when non-empty, is sent right before the port closes.
	Farewell string
}

// Serial is the polled serial transport.
type Serial struct {
	port serial.Port
	cfg  SerialConfig
	cb   Callbacks

	split lineSplitter

	closed atomic.Bool
	stop   chan struct{}
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// OpenSerial opens the serial port and starts the poll loop. The handshake
// command is sent before the first poll.
func OpenSerial(cfg SerialConfig, cb Callbacks) (*Serial, error) {
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	t := &Serial{
		port: port,
		cfg:  cfg,
		cb:   cb,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	if cfg.Handshake != "" {
		if err := t.Send(cfg.Handshake); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("send handshake: %w", err)
		}
	}

	go t.pollLoop()

	log.WithFields(log.Fields{"port": cfg.Port, "baud": cfg.Baud}).
		Info("serial debug transport connected")

	return t, nil
}

// Kind implements Transport.
func (t *Serial) Kind() Kind {
	return KindSerial
}

// Send writes one command line to the device.
func (t *Serial) Send(cmd string) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.port.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// pollLoop drains buffered bytes on a fixed interval and forwards complete
// lines. Read errors are logged and the loop continues on the next tick;
// the loop exits only when the transport is closed.
func (t *Serial) pollLoop() {
	defer close(t.done)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	buf := make([]byte, 4096)

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.drain(buf)
		}
	}
}

// drain reads whatever is buffered on the port. A read returning zero
// bytes means the read timeout expired with nothing pending.
func (t *Serial) drain(buf []byte) {
	n, err := t.port.Read(buf)
	if err != nil {
		if t.closed.Load() {
			return
		}
		log.WithField("port", t.cfg.Port).Warnf("serial read failed: %v", err)
		return
	}
	if n == 0 {
		return
	}

	for _, line := range t.split.push(buf[:n]) {
		if t.closed.Load() {
			return
		}
		if t.cb.OnLine != nil {
			t.cb.OnLine(line)
		}
	}
}

// Close stops the poll loop, sends the farewell command, and closes the
// port. It is idempotent; no callback fires after it returns.
func (t *Serial) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		<-t.done
		t.closed.Store(true)

		if t.cfg.Farewell != "" {
			t.writeMu.Lock()
			if _, werr := t.port.Write([]byte(t.cfg.Farewell + "\n")); werr != nil {
				log.Debugf("serial farewell write failed: %v", werr)
			}
			t.writeMu.Unlock()
		}

		err = t.port.Close()
	})
	return err
}
