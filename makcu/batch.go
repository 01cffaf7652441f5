package makcu

import (
	"fmt"
	"sync/atomic"
)

// Batch accumulates prerendered commands for back-to-back transmission.
// Builder methods are chainable and become no-ops once the owning Device
// has disconnected; the liveness check replaces a dangling back-pointer.
// A Batch is not safe for concurrent use.
type Batch struct {
	dev  *Device
	live *atomic.Bool
	cmds []string
	err  error
}

// NewBatch returns an empty batch bound to d.
func (d *Device) NewBatch() *Batch {
	return &Batch{dev: d, live: &d.live}
}

func (b *Batch) add(cmd string) *Batch {
	if !b.live.Load() {
		return b
	}
	b.cmds = append(b.cmds, cmd)
	return b
}

func (b *Batch) fail(err error) *Batch {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Move appends a relative move.
func (b *Batch) Move(x, y int) *Batch {
	if err := checkCoords(x, y); err != nil {
		return b.fail(err)
	}
	return b.add(b.dev.render("km.move(", x, y))
}

// MoveSmooth appends a linearly interpolated move.
func (b *Batch) MoveSmooth(x, y, segments int) *Batch {
	if err := checkCoords(x, y); err != nil {
		return b.fail(err)
	}
	if err := checkSegments(segments); err != nil {
		return b.fail(err)
	}
	return b.add(b.dev.render("km.move(", x, y, segments))
}

// MoveBezier appends a Bézier interpolated move.
func (b *Batch) MoveBezier(x, y, segments, cx, cy int) *Batch {
	if err := checkCoords(x, y, cx, cy); err != nil {
		return b.fail(err)
	}
	if err := checkSegments(segments); err != nil {
		return b.fail(err)
	}
	return b.add(b.dev.render("km.move(", x, y, segments, cx, cy))
}

// Press appends a button press.
func (b *Batch) Press(btn MouseButton) *Batch {
	return b.button(btn, true)
}

// Release appends a button release.
func (b *Batch) Release(btn MouseButton) *Batch {
	return b.button(btn, false)
}

// Click appends a press followed by a release.
func (b *Batch) Click(btn MouseButton) *Batch {
	return b.button(btn, true).button(btn, false)
}

func (b *Batch) button(btn MouseButton, press bool) *Batch {
	cmd, ok := b.dev.cache.button(btn, press)
	if !ok {
		return b.fail(fmt.Errorf("%w: mouse button %d", ErrInvalidArgument, btn))
	}
	return b.add(cmd)
}

// Scroll appends a wheel movement.
func (b *Batch) Scroll(delta int) *Batch {
	if err := checkCoords(delta); err != nil {
		return b.fail(err)
	}
	return b.add(b.dev.render("km.wheel(", delta))
}

// Drag appends press, move, release.
func (b *Batch) Drag(btn MouseButton, x, y int) *Batch {
	return b.button(btn, true).Move(x, y).button(btn, false)
}

// DragSmooth appends press, interpolated move, release.
func (b *Batch) DragSmooth(btn MouseButton, x, y, segments int) *Batch {
	return b.button(btn, true).MoveSmooth(x, y, segments).button(btn, false)
}

// DragBezier appends press, Bézier move, release.
func (b *Batch) DragBezier(btn MouseButton, x, y, segments, cx, cy int) *Batch {
	return b.button(btn, true).MoveBezier(x, y, segments, cx, cy).button(btn, false)
}

// Len returns the number of queued commands.
func (b *Batch) Len() int {
	return len(b.cmds)
}

// Execute sends the queued commands in order, fire-and-forget, stopping at
// the first failure. Commands already sent are not rolled back. A builder
// error recorded while queuing (invalid argument) is returned before
// anything is sent. The queue is cleared on success.
func (b *Batch) Execute() error {
	if b.err != nil {
		return b.err
	}
	if !b.live.Load() {
		return ErrDisconnected
	}
	for _, cmd := range b.cmds {
		if err := b.dev.send(cmd); err != nil {
			return err
		}
	}
	b.cmds = b.cmds[:0]
	return nil
}
