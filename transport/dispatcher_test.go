package transport_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makcu/makcu-go/transport"
)

// fakeConn is an in-memory transport.Conn: writes are recorded, reads drain
// pushed chunks, honoring the configured read timeout the way a serial port
// does (zero bytes, nil error).
type fakeConn struct {
	mu      sync.Mutex
	closed  bool
	timeout time.Duration
	writes  [][]byte
	alive   bool

	incoming chan []byte
	done     chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		timeout:  20 * time.Millisecond,
		alive:    true,
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

var errConnClosed = errors.New("fake conn closed")

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	closed, timeout := c.closed, c.timeout
	c.mu.Unlock()
	if closed {
		return 0, errConnClosed
	}
	select {
	case chunk := <-c.incoming:
		return copy(p, chunk), nil
	case <-c.done:
		return 0, errConnClosed
	case <-time.After(timeout):
		return 0, nil
	}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errConnClosed
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) SetReadTimeout(d time.Duration) error {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Drain() error { return nil }

func (c *fakeConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive && !c.closed
}

func (c *fakeConn) push(data []byte) {
	c.incoming <- data
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w)
	}
	return out
}

func TestDispatcherSendAppendsNewline(t *testing.T) {
	conn := newFakeConn()
	d := transport.New(conn, nil, nil)
	defer d.Close()

	require.NoError(t, d.Send("km.left(1)"))
	assert.Equal(t, []string{"km.left(1)\n"}, conn.written())
}

func TestDispatcherCorrelatesResponsesInOrder(t *testing.T) {
	conn := newFakeConn()
	d := transport.New(conn, nil, nil)
	defer d.Close()

	first, err := d.Request("km.version()", true, time.Second)
	require.NoError(t, err)
	second, err := d.Request("km.serial()", true, time.Second)
	require.NoError(t, err)

	conn.push([]byte("km.MAKCU v3.2\nABC123\n"))

	resp, err := first.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "km.MAKCU v3.2", resp)

	resp, err = second.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC123", resp)
}

func TestDispatcherRequestTimesOut(t *testing.T) {
	conn := newFakeConn()
	d := transport.New(conn, nil, nil)
	defer d.Close()

	p, err := d.Request("km.catch_ml()", true, 50*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, transport.ErrTimedOut)
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestDispatcherNoResponseRequestCompletesImmediately(t *testing.T) {
	conn := newFakeConn()
	d := transport.New(conn, nil, nil)
	defer d.Close()

	p, err := d.Request("km.move(1,1)", false, time.Second)
	require.NoError(t, err)
	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestDispatcherUnsolicitedLinesAreDropped(t *testing.T) {
	conn := newFakeConn()
	d := transport.New(conn, nil, nil)
	defer d.Close()

	conn.push([]byte("noise\n"))
	time.Sleep(50 * time.Millisecond)

	// A later tracked request still gets its own response, not the noise.
	p, err := d.Request("km.version()", true, time.Second)
	require.NoError(t, err)
	conn.push([]byte("km.MAKCU v3.2\n"))
	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "km.MAKCU v3.2", resp)
}

func TestDispatcherButtonBytesBypassPendingSlots(t *testing.T) {
	conn := newFakeConn()
	var buttons []byte
	var mu sync.Mutex
	d := transport.New(conn, func(b byte) {
		mu.Lock()
		buttons = append(buttons, b)
		mu.Unlock()
	}, nil)
	defer d.Close()

	p, err := d.Request("km.version()", true, time.Second)
	require.NoError(t, err)

	conn.push([]byte{0x02})
	conn.push([]byte("km.MAKCU v3.2\n"))
	conn.push([]byte{0x00})

	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "km.MAKCU v3.2", resp)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(buttons) == 2
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []byte{0x02, 0x00}, buttons)
	mu.Unlock()
}

func TestDispatcherCloseFailsPendingWithDisconnected(t *testing.T) {
	conn := newFakeConn()
	d := transport.New(conn, nil, nil)

	p, err := d.Request("km.version()", true, time.Minute)
	require.NoError(t, err)

	require.NoError(t, d.Close())

	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, transport.ErrDisconnected)

	// Post-shutdown quiescence: no further writes are possible.
	assert.ErrorIs(t, d.Send("km.left(1)"), transport.ErrDisconnected)
	assert.Len(t, conn.written(), 1)
}

func TestDispatcherWaitHonorsContextDeadline(t *testing.T) {
	conn := newFakeConn()
	d := transport.New(conn, nil, nil)
	defer d.Close()

	p, err := d.Request("km.version()", true, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, transport.ErrTimedOut)
}

func TestDispatcherSwapConnRoutesTrafficToNewConn(t *testing.T) {
	oldConn := newFakeConn()
	d := transport.New(oldConn, nil, nil)
	defer d.Close()

	_ = oldConn.Close()
	newConn := newFakeConn()
	d.SwapConn(newConn)

	require.NoError(t, d.Send("km.version()"))
	assert.Equal(t, []string{"km.version()\n"}, newConn.written())

	p, err := d.Request("km.version()", true, time.Second)
	require.NoError(t, err)
	newConn.push([]byte("km.MAKCU v3.2\n"))
	resp, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "km.MAKCU v3.2", resp)
}
