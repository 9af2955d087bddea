// Package link writes command codes to the microcontroller over a serial port,
// tolerating an absent or failing device.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/command"
)

// Serial defaults matching the microcontroller firmware.
const (
	DefaultBaudRate     = 115200
	DefaultWriteTimeout = time.Second
	// DefaultSettleDelay covers the board reset triggered by opening the port.
	DefaultSettleDelay = 2 * time.Second
)

var (
	// ErrWrite is returned when the port rejects a write.
	ErrWrite = errors.New("serial write failed")
	// ErrWriteTimeout is returned when a write does not complete within the write timeout.
	ErrWriteTimeout = errors.New("serial write timed out")
)

// Outcome describes what happened to a dispatched command.
type Outcome int

const (
	// OutcomeSent means the bytes were written to the port.
	OutcomeSent Outcome = iota
	// OutcomeUnavailable means no port is open; nothing was written.
	OutcomeUnavailable
	// OutcomeFailed means the write failed or timed out.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeUnavailable:
		return "link_unavailable"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Config holds serial link settings.
type Config struct {
	Port         string
	BaudRate     uint
	WriteTimeout time.Duration
	SettleDelay  time.Duration
}

// OpenFunc opens a serial port. serial.Open satisfies it.
type OpenFunc func(opts serial.OpenOptions) (io.ReadWriteCloser, error)

// Dispatcher owns the outbound link. A Dispatcher without a port is in the
// unavailable state: Send reports OutcomeUnavailable and never fails.
type Dispatcher struct {
	name    string
	timeout time.Duration
	log     logrus.FieldLogger

	mu      sync.Mutex
	port    io.WriteCloser
	pending chan error
}

// Open opens the configured serial port. On failure it returns an unavailable
// Dispatcher together with the error so the caller can decide whether running
// without the link is acceptable.
func Open(cfg Config, log logrus.FieldLogger) (*Dispatcher, error) {
	return OpenWith(serial.Open, cfg, log)
}

// OpenWith is Open with a custom port opener.
func OpenWith(open OpenFunc, cfg Config, log logrus.FieldLogger) (*Dispatcher, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	opts := serial.OpenOptions{
		PortName:              cfg.Port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 100,
	}

	port, err := open(opts)
	if err != nil {
		log.WithError(err).WithField("port", cfg.Port).Warn("could not open serial link, continuing without it")
		return Unavailable(cfg.Port, log), fmt.Errorf("open %s: %w", cfg.Port, err)
	}

	if cfg.SettleDelay > 0 {
		time.Sleep(cfg.SettleDelay)
	}

	log.WithFields(logrus.Fields{"port": cfg.Port, "baud": baud}).Info("serial link connected")
	return New(cfg.Port, port, cfg.WriteTimeout, log), nil
}

// New wraps an already open port.
func New(name string, port io.WriteCloser, writeTimeout time.Duration, log logrus.FieldLogger) *Dispatcher {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Dispatcher{
		name:    name,
		timeout: writeTimeout,
		log:     log,
		port:    port,
	}
}

// Unavailable returns a Dispatcher with no port.
func Unavailable(name string, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{name: name, timeout: DefaultWriteTimeout, log: log}
}

// Name returns the configured port name.
func (d *Dispatcher) Name() string {
	return d.name
}

// Available reports whether a port is open.
func (d *Dispatcher) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port != nil
}

// Send writes code followed by a newline. Nothing is retried.
func (d *Dispatcher) Send(code command.Code) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		d.log.WithFields(logrus.Fields{"code": code, "port": d.name}).Warn("link unavailable, command not sent")
		return OutcomeUnavailable, nil
	}

	if err := d.write(code.Wire()); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{"code": code, "port": d.name}).Warn("command not sent")
		return OutcomeFailed, err
	}

	d.log.WithField("code", code).Info("sent command")
	return OutcomeSent, nil
}

// write performs a single bounded write. A write that outlives the timeout
// keeps running in the background; until it returns, further writes fail
// immediately so bytes never interleave.
func (d *Dispatcher) write(p []byte) error {
	if d.pending != nil {
		select {
		case <-d.pending:
			d.pending = nil
		default:
			return fmt.Errorf("%w: previous write still blocked", ErrWriteTimeout)
		}
	}

	done := make(chan error, 1)
	port := d.port
	go func() {
		n, err := port.Write(p)
		if err == nil && n < len(p) {
			err = io.ErrShortWrite
		}
		done <- err
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		return nil
	case <-timer.C:
		d.pending = done
		return fmt.Errorf("%w after %s", ErrWriteTimeout, d.timeout)
	}
}

// Close closes the port. Closing an unavailable Dispatcher is a no-op.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}
