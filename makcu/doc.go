// Package makcu is the host-side client for the MAKCU USB mouse controller.
//
// The device speaks a small ASCII command language over a serial link and
// emulates HID mouse input. A Device connects at 115200 baud, performs a
// binary handshake that upgrades the link to 4,000,000 baud, and then
// exposes typed operations: press and release buttons, move the cursor
// (linear, smooth or Bézier-interpolated), scroll, lock input axes and
// buttons, spoof the USB serial string, and observe physical button
// activity through a callback and an atomic button mask.
//
// Commands are either fire-and-forget, where the only acknowledgement is
// the transport-level write succeeding, or tracked, where the next response
// line on the link is correlated to the request. Responses are matched in
// FIFO order; the device answers commands in the order it receives them.
//
// Command grammar recognized by this package:
//
//	km.version()                      firmware version (contains "km.MAKCU")
//	km.left(0|1)  km.right(0|1)       press/release a button; also
//	km.middle(0|1) km.ms1(0|1) km.ms2(0|1)
//	km.move(x,y[,n[,cx,cy]])          move; optional segments and Bézier control
//	km.wheel(d)                       scroll
//	km.lock_mx(0|1) ... km.lock_ms2(0|1)  set/clear an axis or button lock
//	km.buttons(0|1)                   disable/enable the button event stream
//	km.catch_ml() ... km.catch_ms2()  consume a caught button count
//	km.serial() / km.serial('s') / km.serial(0)  read / spoof / reset serial
//
// Button events arrive as single raw bytes whose low five bits are the
// current state of LEFT..SIDE2.
package makcu
