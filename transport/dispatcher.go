package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// readTimeout bounds each listener read so deadline sweeps run even on a
	// quiet link.
	readTimeout = 20 * time.Millisecond

	// reopenBackoff is how long the listener waits after a read error before
	// retrying; the connection may be mid-swap during a baud reconfiguration.
	reopenBackoff = 5 * time.Millisecond
)

// Pending is the handle for one tracked request. It completes exactly once:
// with the correlated response line, with ErrTimedOut when its deadline
// elapses, or with ErrDisconnected when the dispatcher shuts down.
type Pending struct {
	id       uint64
	text     string
	expects  bool
	sentAt   time.Time
	deadline time.Time

	done chan struct{}
	resp string
	err  error
}

// Wait blocks until the request completes or ctx is done, whichever comes
// first. A ctx expiry does not cancel the in-flight request; the dispatcher
// still retires it at its own deadline.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %q: %v", ErrTimedOut, p.text, ctx.Err())
	}
}

// complete must be called at most once; the dispatcher guarantees this by
// removing a pending entry from the FIFO under the lock before completing it.
func (p *Pending) complete(resp string, err error) {
	p.resp = resp
	p.err = err
	close(p.done)
}

// Dispatcher owns the listener goroutine for one connection and correlates
// response lines to tracked requests in FIFO order. Fire-and-forget traffic
// goes through Send; tracked traffic through Request.
type Dispatcher struct {
	logger *slog.Logger

	connMu sync.RWMutex
	conn   Conn

	mu      sync.Mutex
	pending []*Pending
	seq     uint64

	onButton func(byte)

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New starts a dispatcher on conn. Button-mask bytes demultiplexed out of
// the stream are delivered to onButton from the listener goroutine.
func New(conn Conn, onButton func(byte), logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		logger:   logger,
		conn:     conn,
		onButton: onButton,
		stop:     make(chan struct{}),
	}
	_ = conn.SetReadTimeout(readTimeout)
	d.wg.Add(1)
	go d.listen()
	return d
}

// Send writes a fire-and-forget command. The only acknowledgement is the
// transport-level write succeeding.
func (d *Dispatcher) Send(text string) error {
	start := time.Now()
	if err := d.write(text); err != nil {
		return err
	}
	RecordCommandTiming(text, time.Since(start))
	return nil
}

// Request writes a tracked command and returns its completion handle. When
// expectResponse is false the handle completes immediately after the write;
// otherwise it completes with the next correlated response line, or fails
// at the deadline.
func (d *Dispatcher) Request(text string, expectResponse bool, timeout time.Duration) (*Pending, error) {
	now := time.Now()
	d.mu.Lock()
	d.seq++
	p := &Pending{
		id:       d.seq,
		text:     text,
		expects:  expectResponse,
		sentAt:   now,
		deadline: now.Add(timeout),
		done:     make(chan struct{}),
	}
	if expectResponse {
		d.pending = append(d.pending, p)
	}
	d.mu.Unlock()

	if err := d.write(text); err != nil {
		// A listener line, sweep or Close may already have taken and
		// completed p; only complete it here if it was still queued.
		if !expectResponse || d.removePending(p) {
			p.complete("", err)
		}
		return nil, err
	}
	if !expectResponse {
		p.complete("", nil)
	}
	RecordCommandTiming(text, time.Since(now))
	return p, nil
}

// SwapConn replaces the underlying connection, e.g. after a baud-rate
// reconfiguration reopened the port. The previous connection must already be
// closed; the listener picks up the new one on its next read.
func (d *Dispatcher) SwapConn(conn Conn) {
	_ = conn.SetReadTimeout(readTimeout)
	d.connMu.Lock()
	d.conn = conn
	d.connMu.Unlock()
}

// Conn returns the current underlying connection.
func (d *Dispatcher) Conn() Conn {
	d.connMu.RLock()
	defer d.connMu.RUnlock()
	return d.conn
}

// Alive probes whether the underlying device is still present.
func (d *Dispatcher) Alive() bool {
	conn := d.Conn()
	return conn != nil && conn.Alive()
}

// Close stops the listener, closes the underlying connection and fails every
// outstanding request with ErrDisconnected. Safe to call more than once.
func (d *Dispatcher) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	d.connMu.Lock()
	conn := d.conn
	d.conn = nil
	d.connMu.Unlock()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	d.wg.Wait()
	d.failAll(ErrDisconnected)
	return err
}

func (d *Dispatcher) write(text string) error {
	d.connMu.RLock()
	conn := d.conn
	d.connMu.RUnlock()
	if conn == nil {
		return ErrDisconnected
	}
	buf := make([]byte, 0, len(text)+1)
	buf = append(buf, text...)
	buf = append(buf, '\n')
	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("write %q: %w", text, err)
	}
	return nil
}

func (d *Dispatcher) listen() {
	defer d.wg.Done()
	framer := NewFramer(d.onTextLine, d.onButtonByte)
	buf := make([]byte, 4096)
	for {
		select {
		case <-d.stop:
			return
		default:
		}
		conn := d.Conn()
		if conn == nil {
			select {
			case <-d.stop:
				return
			case <-time.After(reopenBackoff):
			}
			continue
		}
		n, err := conn.Read(buf)
		if n > 0 {
			framer.Feed(buf[:n])
		}
		d.sweep()
		if err != nil {
			// The port may be closed mid-swap during a baud change; back off
			// and re-check rather than tearing down. Real device loss is the
			// health monitor's call.
			select {
			case <-d.stop:
				return
			case <-time.After(reopenBackoff):
			}
		}
	}
}

// onTextLine completes the oldest pending request that expects a response.
// Lines arriving with nothing outstanding are asynchronous device chatter
// and are dropped.
func (d *Dispatcher) onTextLine(line string) {
	line = strings.TrimSpace(line)
	d.mu.Lock()
	var p *Pending
	if len(d.pending) > 0 {
		p = d.pending[0]
		d.pending = d.pending[1:]
	}
	d.mu.Unlock()
	if p == nil {
		d.logger.Debug("dropping unsolicited line", "line", line)
		return
	}
	p.complete(line, nil)
}

func (d *Dispatcher) onButtonByte(b byte) {
	if d.onButton != nil {
		d.onButton(b)
	}
}

// sweep retires pending requests whose deadline has elapsed.
func (d *Dispatcher) sweep() {
	now := time.Now()
	var expired []*Pending
	d.mu.Lock()
	kept := d.pending[:0]
	for _, p := range d.pending {
		if now.After(p.deadline) {
			expired = append(expired, p)
		} else {
			kept = append(kept, p)
		}
	}
	d.pending = kept
	d.mu.Unlock()
	for _, p := range expired {
		p.complete("", fmt.Errorf("%w: %q after %v", ErrTimedOut, p.text, now.Sub(p.sentAt).Round(time.Millisecond)))
	}
}

func (d *Dispatcher) removePending(target *Pending) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.pending {
		if p == target {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Dispatcher) failAll(err error) {
	d.mu.Lock()
	failed := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, p := range failed {
		p.complete("", err)
	}
}
