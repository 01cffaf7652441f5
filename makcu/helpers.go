package makcu

import "time"

// ClickSequence clicks each button in order with a pause between clicks.
// Stops at the first failing click.
func (d *Device) ClickSequence(buttons []MouseButton, delay time.Duration) error {
	for i, b := range buttons {
		if i > 0 && delay > 0 {
			time.Sleep(delay)
		}
		if err := d.Click(b); err != nil {
			return err
		}
	}
	return nil
}

// Point is one step of a movement pattern.
type Point struct {
	X, Y int
}

// MovePattern moves through points in order, smoothly interpolated when
// smooth is set. Stops at the first failing move.
func (d *Device) MovePattern(points []Point, smooth bool, segments int) error {
	for _, p := range points {
		var err error
		if smooth {
			err = d.MouseMoveSmooth(p.X, p.Y, segments)
		} else {
			err = d.MouseMove(p.X, p.Y)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
