// Package serialport wraps a single OS serial device handle with the
// lifecycle operations the MAKCU link needs: 8N1 open, reopen at a new baud
// rate, bounded reads, output drain, and a liveness probe that notices
// surprise USB removal even while the OS handle still looks open.
package serialport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Errors surfaced by port operations. Open failures carry one of the first
// three; I/O on an established port fails with ErrIOFailed or ErrClosed.
var (
	ErrPortUnavailable  = errors.New("serialport: port unavailable")
	ErrConfigRejected   = errors.New("serialport: port configuration rejected")
	ErrPermissionDenied = errors.New("serialport: permission denied")
	ErrIOFailed         = errors.New("serialport: i/o failed")
	ErrClosed           = errors.New("serialport: port closed")
)

// Port is a thread-safe handle to one serial device, opened with 8 data
// bits, no parity, one stop bit and no flow control.
type Port struct {
	mu   sync.Mutex
	name string
	baud int
	port serial.Port
	open bool
}

// Open opens the named device at the given baud rate.
func Open(name string, baud int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(name, mode)
	if err != nil {
		return nil, classifyOpenError(name, err)
	}
	return &Port{name: name, baud: baud, port: sp, open: true}, nil
}

// Close releases the OS handle. Closing an already-closed port is a no-op.
// A blocked Read is unblocked with ErrClosed.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil
	}
	p.open = false
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIOFailed, p.name, err)
	}
	return nil
}

// Reopen closes the handle and reopens the same device at a new baud rate.
// Used when the OS cannot retune an open handle in place. On failure the
// port is left closed.
func (p *Port) Reopen(baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		p.open = false
		_ = p.port.Close()
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(p.name, mode)
	if err != nil {
		return classifyOpenError(p.name, err)
	}
	p.port = sp
	p.baud = baud
	p.open = true
	return nil
}

// IsOpen reports whether the handle is open. It does not query the OS; see
// Alive for a probe that detects removed devices.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Name returns the OS device name the port was opened with.
func (p *Port) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Baud returns the currently configured baud rate.
func (p *Port) Baud() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baud
}

// Read fills buf with available bytes, blocking up to the configured read
// timeout. A timeout returns (0, nil). Reading a closed port returns
// ErrClosed.
func (p *Port) Read(buf []byte) (int, error) {
	sp, ok := p.handle()
	if !ok {
		return 0, ErrClosed
	}
	n, err := sp.Read(buf)
	if err != nil {
		if !p.IsOpen() {
			return n, ErrClosed
		}
		return n, fmt.Errorf("%w: read %s: %v", ErrIOFailed, p.name, err)
	}
	return n, nil
}

// Write writes buf in full.
func (p *Port) Write(buf []byte) (int, error) {
	sp, ok := p.handle()
	if !ok {
		return 0, ErrClosed
	}
	n, err := sp.Write(buf)
	if err != nil {
		return n, fmt.Errorf("%w: write %s: %v", ErrIOFailed, p.name, err)
	}
	return n, nil
}

// SetReadTimeout bounds how long a Read blocks waiting for the first byte.
func (p *Port) SetReadTimeout(d time.Duration) error {
	sp, ok := p.handle()
	if !ok {
		return ErrClosed
	}
	if err := sp.SetReadTimeout(d); err != nil {
		return fmt.Errorf("%w: set read timeout on %s: %v", ErrIOFailed, p.name, err)
	}
	return nil
}

// Drain blocks until the OS-side output buffer has been transmitted.
func (p *Port) Drain() error {
	sp, ok := p.handle()
	if !ok {
		return ErrClosed
	}
	if err := sp.Drain(); err != nil {
		return fmt.Errorf("%w: drain %s: %v", ErrIOFailed, p.name, err)
	}
	return nil
}

// Alive reports whether the OS still knows the device. On USB surprise
// removal some platforms keep the handle "open" while reads spin; Alive
// re-enumerates and checks that the device name is still present. An
// enumeration failure is inconclusive and reported as alive.
func (p *Port) Alive() bool {
	p.mu.Lock()
	name := p.name
	open := p.open
	p.mu.Unlock()
	if !open {
		return false
	}
	ports, err := serial.GetPortsList()
	if err != nil {
		return true
	}
	for _, candidate := range ports {
		if candidate == name {
			return true
		}
	}
	return false
}

func (p *Port) handle() (serial.Port, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, false
	}
	return p.port, true
}

func classifyOpenError(name string, err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PermissionDenied:
			return fmt.Errorf("%w: open %s: %v", ErrPermissionDenied, name, err)
		case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity, serial.InvalidStopBits:
			return fmt.Errorf("%w: open %s: %v", ErrConfigRejected, name, err)
		}
	}
	return fmt.Errorf("%w: open %s: %v", ErrPortUnavailable, name, err)
}
