// Package transport implements the control-plane transport of the MAKCU
// serial protocol: framing of the incoming byte stream into button events
// and text responses, and correlation of text responses to outstanding
// requests in FIFO order.
package transport

import (
	"errors"
	"io"
	"time"
)

// Errors surfaced by the dispatcher. Request handles complete with
// ErrTimedOut when their deadline elapses and with ErrDisconnected when the
// transport shuts down underneath them.
var (
	ErrTimedOut     = errors.New("transport: request timed out")
	ErrDisconnected = errors.New("transport: disconnected")
)

// Conn is the byte-level link the dispatcher drives. serialport.Port is the
// production implementation; tests substitute in-memory fakes.
//
// Read must honor a timeout configured via SetReadTimeout and return (0, nil)
// when it elapses with no data, matching go.bug.st/serial semantics.
type Conn interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds how long Read blocks waiting for data.
	SetReadTimeout(d time.Duration) error

	// Drain blocks until buffered output has been handed to the device.
	Drain() error

	// Alive reports whether the underlying device is still present.
	Alive() bool
}
