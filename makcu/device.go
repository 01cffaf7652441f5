package makcu

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/makcu/makcu-go/serialport"
	"github.com/makcu/makcu-go/transport"
)

const (
	// maxSegments caps the segment count for interpolated moves.
	maxSegments = 1000

	catchTimeout     = 50 * time.Millisecond
	requestTimeout   = 100 * time.Millisecond
	serialGetTimeout = 100 * time.Millisecond
)

// Dialer opens the serial link to a device port at the given baud rate.
// The default dials a real serial port; tests substitute fakes.
type Dialer func(port string, baud int) (transport.Conn, error)

func defaultDial(port string, baud int) (transport.Conn, error) {
	return serialport.Open(port, baud)
}

// Options configures a Device beyond its defaults.
type Options struct {
	// Logger receives transport diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Dialer overrides how the serial link is opened.
	Dialer Dialer

	// FindPort overrides candidate-port discovery, used when Connect is
	// called with an empty port name.
	FindPort func() (string, error)
}

// session is the per-connection state: the dispatcher plus the health
// monitor's stop machinery. Replaced wholesale on every connect so a stale
// monitor can never stop a newer connection.
type session struct {
	disp     *transport.Dispatcher
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Device is a host-side handle to one MAKCU controller. All methods are
// safe for concurrent use. Operations other than Connect fail fast with
// ErrDisconnected while no device is connected.
type Device struct {
	logger   *slog.Logger
	dial     Dialer
	findPort func() (string, error)

	// connMu serializes Connect and SetBaudRate. Disconnect does not take it;
	// it relies on the compare-and-swap of live instead.
	connMu sync.Mutex
	sess   atomic.Pointer[session]

	infoMu sync.Mutex
	info   DeviceInfo

	status atomic.Int32
	live   atomic.Bool

	buttonMask atomic.Uint32
	lockBits   atomic.Uint32
	lockValid  atomic.Bool
	monitoring atomic.Bool

	cbMu     sync.Mutex
	buttonCB ButtonCallback
	connCB   ConnectionCallback

	fmtMu  sync.Mutex
	fmtBuf []byte

	cache commandCache
}

// New returns a disconnected Device with default options.
func New() *Device {
	return NewWithOptions(Options{})
}

// NewWithOptions returns a disconnected Device configured by o.
func NewWithOptions(o Options) *Device {
	d := &Device{
		logger:   o.Logger,
		dial:     o.Dialer,
		findPort: o.FindPort,
		cache:    buildCommandCache(),
		fmtBuf:   make([]byte, 0, 64),
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.dial == nil {
		d.dial = defaultDial
	}
	if d.findPort == nil {
		d.findPort = FindFirstDevice
	}
	return d
}

// FindDevices enumerates candidate MAKCU ports as DeviceInfo values.
func FindDevices() ([]DeviceInfo, error) {
	ports, err := serialport.FindDevicePorts()
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, DeviceInfo{
			Port:        p.Name,
			Description: p.Description,
			VID:         p.VID,
			PID:         p.PID,
		})
	}
	return infos, nil
}

// FindFirstDevice returns the port name of the first candidate device.
func FindFirstDevice() (string, error) {
	devices, err := FindDevices()
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}
	return devices[0].Port, nil
}

// IsConnected reports whether the device is currently connected.
func (d *Device) IsConnected() bool {
	return d.live.Load()
}

// Status returns the current connection lifecycle state.
func (d *Device) Status() ConnectionStatus {
	return ConnectionStatus(d.status.Load())
}

// Info returns a snapshot of the connected device's identity.
func (d *Device) Info() DeviceInfo {
	d.infoMu.Lock()
	defer d.infoMu.Unlock()
	return d.info
}

// SetButtonCallback installs the observer for physical button transitions.
// Pass nil to remove it.
func (d *Device) SetButtonCallback(cb ButtonCallback) {
	d.cbMu.Lock()
	d.buttonCB = cb
	d.cbMu.Unlock()
}

// SetConnectionCallback installs the observer for connect/disconnect
// transitions. Pass nil to remove it.
func (d *Device) SetConnectionCallback(cb ConnectionCallback) {
	d.cbMu.Lock()
	d.connCB = cb
	d.cbMu.Unlock()
}

// MouseDown presses and holds a button.
func (d *Device) MouseDown(b MouseButton) error {
	return d.sendButton(b, true)
}

// MouseUp releases a button.
func (d *Device) MouseUp(b MouseButton) error {
	return d.sendButton(b, false)
}

// Click presses and releases a button.
func (d *Device) Click(b MouseButton) error {
	if err := d.sendButton(b, true); err != nil {
		return err
	}
	return d.sendButton(b, false)
}

func (d *Device) sendButton(b MouseButton, press bool) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	cmd, ok := d.cache.button(b, press)
	if !ok {
		return fmt.Errorf("%w: mouse button %d", ErrInvalidArgument, b)
	}
	return d.send(cmd)
}

// MouseMove moves the cursor by the relative offset (x, y).
func (d *Device) MouseMove(x, y int) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	if err := checkCoords(x, y); err != nil {
		return err
	}
	return d.send(d.render("km.move(", x, y))
}

// MouseMoveSmooth moves by (x, y) with the device interpolating linearly
// over segments steps.
func (d *Device) MouseMoveSmooth(x, y, segments int) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	if err := checkCoords(x, y); err != nil {
		return err
	}
	if err := checkSegments(segments); err != nil {
		return err
	}
	return d.send(d.render("km.move(", x, y, segments))
}

// MouseMoveBezier moves by (x, y) along a quadratic Bézier curve with
// control-point offset (cx, cy), interpolated over segments steps.
func (d *Device) MouseMoveBezier(x, y, segments, cx, cy int) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	if err := checkCoords(x, y, cx, cy); err != nil {
		return err
	}
	if err := checkSegments(segments); err != nil {
		return err
	}
	return d.send(d.render("km.move(", x, y, segments, cx, cy))
}

// MouseDrag presses b, moves by (x, y), and releases b. The sequence stops
// at the first failing command.
func (d *Device) MouseDrag(b MouseButton, x, y int) error {
	return d.drag(b, func() error { return d.MouseMove(x, y) })
}

// MouseDragSmooth is MouseDrag with a smooth interpolated move.
func (d *Device) MouseDragSmooth(b MouseButton, x, y, segments int) error {
	return d.drag(b, func() error { return d.MouseMoveSmooth(x, y, segments) })
}

// MouseDragBezier is MouseDrag with a Bézier interpolated move.
func (d *Device) MouseDragBezier(b MouseButton, x, y, segments, cx, cy int) error {
	return d.drag(b, func() error { return d.MouseMoveBezier(x, y, segments, cx, cy) })
}

func (d *Device) drag(b MouseButton, move func() error) error {
	if err := d.MouseDown(b); err != nil {
		return err
	}
	if err := move(); err != nil {
		return err
	}
	return d.MouseUp(b)
}

// MouseWheel scrolls by delta notches.
func (d *Device) MouseWheel(delta int) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	if err := checkCoords(delta); err != nil {
		return err
	}
	return d.send(d.render("km.wheel(", delta))
}

// Lock masks (or unmasks) an axis or button on the device so the host OS
// stops seeing its input. The cached lock state is updated optimistically
// on transport success.
func (d *Device) Lock(t LockTarget, lock bool) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	cmd, ok := d.cache.lock(t, lock)
	if !ok {
		return fmt.Errorf("%w: lock target %d", ErrInvalidArgument, t)
	}
	if err := d.send(cmd); err != nil {
		return err
	}
	bit := uint32(1) << uint(t)
	if lock {
		d.lockBits.Or(bit)
	} else {
		d.lockBits.And(^bit)
	}
	return nil
}

// IsLocked reports the cached lock state for t. Returns false while the
// cache is invalid (no successful connection).
func (d *Device) IsLocked(t LockTarget) bool {
	if int(t) >= lockTargetCount || !d.lockValid.Load() {
		return false
	}
	return d.lockBits.Load()&(1<<uint(t)) != 0
}

// AllLockStates snapshots the cached lock state for every target.
func (d *Device) AllLockStates() map[string]bool {
	bits := d.lockBits.Load()
	valid := d.lockValid.Load()
	out := make(map[string]bool, lockTargetCount)
	for i, name := range lockTargetNames {
		out[name] = valid && bits&(1<<uint(i)) != 0
	}
	return out
}

// QueryLock asks the device for the authoritative lock state of t,
// bypassing the cache.
func (d *Device) QueryLock(t LockTarget) (bool, error) {
	if err := d.requireConnected(); err != nil {
		return false, err
	}
	cmd, ok := d.cache.lockQuery(t)
	if !ok {
		return false, fmt.Errorf("%w: lock target %d", ErrInvalidArgument, t)
	}
	resp, err := d.request(cmd, requestTimeout)
	if err != nil {
		return false, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return false, fmt.Errorf("%w: lock query answered %q", ErrProtocolUnexpected, resp)
	}
	return n != 0, nil
}

// CatchButton consumes the device-side caught-event count for b. Returns 0
// when the device does not answer within the catch window or answers with
// something unparsable.
func (d *Device) CatchButton(b MouseButton) (uint8, error) {
	if err := d.requireConnected(); err != nil {
		return 0, err
	}
	suffix, ok := catchSuffix(b)
	if !ok {
		return 0, fmt.Errorf("%w: mouse button %d", ErrInvalidArgument, b)
	}
	resp, err := d.request("km.catch_"+suffix+"()", catchTimeout)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil || n < 0 || n > 255 {
		return 0, fmt.Errorf("%w: catch answered %q", ErrProtocolUnexpected, resp)
	}
	return uint8(n), nil
}

func catchSuffix(b MouseButton) (string, bool) {
	switch b {
	case ButtonLeft:
		return "ml", true
	case ButtonRight:
		return "mr", true
	case ButtonMiddle:
		return "mm", true
	case ButtonSide1:
		return "ms1", true
	case ButtonSide2:
		return "ms2", true
	default:
		return "", false
	}
}

// MouseSerial reads the USB serial string the device currently reports.
func (d *Device) MouseSerial() (string, error) {
	if err := d.requireConnected(); err != nil {
		return "", err
	}
	return d.request("km.serial()", serialGetTimeout)
}

// SetMouseSerial spoofs the USB serial string.
func (d *Device) SetMouseSerial(serial string) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	return d.send("km.serial('" + escapeSerialArg(serial) + "')")
}

// ResetMouseSerial restores the factory USB serial string.
func (d *Device) ResetMouseSerial() error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	return d.send("km.serial(0)")
}

// EnableButtonMonitoring turns the device's button event stream on or off.
func (d *Device) EnableButtonMonitoring(enable bool) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	cmd := "km.buttons(0)"
	if enable {
		cmd = "km.buttons(1)"
	}
	if err := d.send(cmd); err != nil {
		return err
	}
	d.monitoring.Store(enable)
	return nil
}

// IsButtonMonitoringEnabled reports whether the button event stream is on.
func (d *Device) IsButtonMonitoringEnabled() bool {
	return d.monitoring.Load()
}

// ButtonMask returns the last observed physical button state, one bit per
// MouseButton.
func (d *Device) ButtonMask() uint8 {
	return uint8(d.buttonMask.Load())
}

// ButtonState reports the last observed state of one button.
func (d *Device) ButtonState(b MouseButton) bool {
	if int(b) >= buttonCount {
		return false
	}
	return d.ButtonMask()&(1<<uint(b)) != 0
}

// Version probes the firmware version. The device can be slow to answer
// right after a baud change, so up to three attempts are made with widening
// windows before giving up.
func (d *Device) Version() (string, error) {
	if err := d.requireConnected(); err != nil {
		return "", err
	}
	timeouts := [...]time.Duration{75 * time.Millisecond, 150 * time.Millisecond, 300 * time.Millisecond}
	settles := [...]time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond}
	var lastErr error
	for i, timeout := range timeouts {
		resp, err := d.request("km.version()", timeout)
		if err == nil && resp != "" {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		}
		time.Sleep(settles[i])
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: empty version response", ErrProtocolUnexpected)
	}
	return "", lastErr
}

// SendRawCommand writes an arbitrary command string, fire-and-forget. No
// escaping or validation is applied; prefer the typed operations.
func (d *Device) SendRawCommand(cmd string) error {
	if err := d.requireConnected(); err != nil {
		return err
	}
	return d.send(cmd)
}

func (d *Device) requireConnected() error {
	if !d.live.Load() {
		return ErrDisconnected
	}
	return nil
}

func (d *Device) send(cmd string) error {
	sess := d.sess.Load()
	if sess == nil {
		return ErrDisconnected
	}
	return sess.disp.Send(cmd)
}

// request issues a tracked command and waits for its correlated response.
func (d *Device) request(cmd string, timeout time.Duration) (string, error) {
	sess := d.sess.Load()
	if sess == nil {
		return "", ErrDisconnected
	}
	p, err := sess.disp.Request(cmd, true, timeout)
	if err != nil {
		return "", err
	}
	return p.Wait(context.Background())
}

// render formats a command into the shared buffer, held only for the
// duration of the append, and returns it as an immutable string.
func (d *Device) render(prefix string, args ...int) string {
	d.fmtMu.Lock()
	defer d.fmtMu.Unlock()
	buf := append(d.fmtBuf[:0], prefix...)
	for i, a := range args {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(a), 10)
	}
	buf = append(buf, ')')
	d.fmtBuf = buf
	return string(buf)
}

// handleButtonByte demultiplexes one button-mask byte from the listener:
// updates the atomic mask bit by bit and notifies the callback per changed
// button, in bit order (LEFT first) whether the change is a press or a
// release.
func (d *Device) handleButtonByte(b byte) {
	old := uint8(d.buttonMask.Load())
	if b == old {
		return
	}
	cb := d.buttonCallback()
	for bit := 0; bit < buttonCount; bit++ {
		mask := uint8(1) << uint(bit)
		if (b^old)&mask == 0 {
			continue
		}
		pressed := b&mask != 0
		if pressed {
			d.buttonMask.Or(uint32(mask))
		} else {
			d.buttonMask.And(^uint32(mask))
		}
		if cb != nil {
			invokeButtonCallback(cb, MouseButton(bit), pressed)
		}
	}
}

func (d *Device) buttonCallback() ButtonCallback {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	return d.buttonCB
}

func (d *Device) connectionCallback() ConnectionCallback {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	return d.connCB
}

// Callback panics must not take down the listener or the lifecycle path.
func invokeButtonCallback(cb ButtonCallback, b MouseButton, pressed bool) {
	defer func() { _ = recover() }()
	cb(b, pressed)
}

func invokeConnectionCallback(cb ConnectionCallback, connected bool) {
	defer func() { _ = recover() }()
	cb(connected)
}

func checkCoords(vals ...int) error {
	for _, v := range vals {
		if v < -32768 || v > 32767 {
			return fmt.Errorf("%w: coordinate %d out of int16 range", ErrInvalidArgument, v)
		}
	}
	return nil
}

func checkSegments(segments int) error {
	if segments < 1 || segments > maxSegments {
		return fmt.Errorf("%w: segment count %d out of range 1..%d", ErrInvalidArgument, segments, maxSegments)
	}
	return nil
}
