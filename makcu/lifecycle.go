package makcu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/makcu/makcu-go/serialport"
	"github.com/makcu/makcu-go/transport"
)

const (
	// baudSettleDelay is how long the device needs between receiving the
	// baud-change frame and accepting a reopen at the new rate.
	baudSettleDelay = 50 * time.Millisecond

	// connectProbeTimeout is the request deadline for the version probe at
	// the end of Connect; connectProbeWall bounds the whole wait.
	connectProbeTimeout = 100 * time.Millisecond
	connectProbeWall    = 150 * time.Millisecond

	// validateTimeout is the version-probe deadline used by SetBaudRate.
	validateTimeout = 1000 * time.Millisecond

	monitorInitialInterval = 150 * time.Millisecond
	monitorMaxInterval     = 500 * time.Millisecond
)

// Connect opens the device link: resolves the port (autodetecting when name
// is empty), opens it at 115200 baud, upgrades the link to 4,000,000 baud,
// enables button notifications, and probes responsiveness. On success the
// health monitor starts and the connection callback fires with true.
// Connecting an already-connected device is a no-op.
func (d *Device) Connect(port string) error {
	d.connMu.Lock()
	transitioned, err := d.connectLocked(port)
	d.connMu.Unlock()
	if transitioned {
		if cb := d.connectionCallback(); cb != nil {
			invokeConnectionCallback(cb, true)
		}
	}
	return err
}

func (d *Device) connectLocked(port string) (bool, error) {
	if d.live.Load() {
		return false, nil
	}

	target := port
	if target == "" {
		found, err := d.findPort()
		if err != nil {
			d.status.Store(int32(StatusConnectionError))
			return false, err
		}
		target = found
	}

	d.status.Store(int32(StatusConnecting))
	d.logger.Debug("connecting", "port", target, "baud", initialBaudRate)

	conn, err := d.dial(target, initialBaudRate)
	if err != nil {
		d.status.Store(int32(StatusConnectionError))
		return false, err
	}

	conn, err = d.upgradeBaud(conn, target, highSpeedBaudRate)
	if err != nil {
		d.status.Store(int32(StatusConnectionError))
		return false, fmt.Errorf("%w: upgrade to %d baud: %v", ErrHandshakeFailed, highSpeedBaudRate, err)
	}

	if !conn.Alive() {
		_ = conn.Close()
		d.status.Store(int32(StatusConnectionError))
		return false, fmt.Errorf("%w: device vanished after baud upgrade", ErrHandshakeFailed)
	}

	sess := &session{
		disp: transport.New(conn, d.handleButtonByte, d.logger),
		stop: make(chan struct{}),
	}

	fail := func(err error) (bool, error) {
		_ = sess.disp.Close()
		d.status.Store(int32(StatusConnectionError))
		return false, err
	}

	// Device init: enable the button event stream.
	if err := sess.disp.Send("km.buttons(1)"); err != nil {
		return fail(err)
	}

	// Probe responsiveness before declaring the link up.
	pending, err := sess.disp.Request("km.version()", true, connectProbeTimeout)
	if err != nil {
		return fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectProbeWall)
	defer cancel()
	if _, err := pending.Wait(ctx); err != nil {
		return fail(fmt.Errorf("device not responding: %w", err))
	}

	d.infoMu.Lock()
	d.info = DeviceInfo{
		Port:        target,
		Description: serialport.PrimaryDescription,
		VID:         serialport.VendorID,
		PID:         serialport.ProductID,
		Connected:   true,
	}
	d.infoMu.Unlock()

	d.sess.Store(sess)
	d.lockBits.Store(0)
	d.lockValid.Store(true)
	d.monitoring.Store(true)
	d.status.Store(int32(StatusConnected))
	// The live store publishes the session, info and flags above: any
	// goroutine observing live==true sees a fully initialized connection.
	d.live.Store(true)

	sess.wg.Add(1)
	go d.healthMonitor(sess)

	d.logger.Info("device connected", "port", target, "baud", highSpeedBaudRate)
	return true, nil
}

// Disconnect tears the connection down and releases the port. Safe to call
// while the health monitor is concurrently detecting a dead link; the
// connection callback fires exactly once per transition either way.
func (d *Device) Disconnect() {
	d.teardown(false)
}

// teardown stops the health monitor and, if this caller wins the live
// true→false transition, clears connection state and fires the callback.
// The monitor passes fromMonitor=true so it never joins itself.
func (d *Device) teardown(fromMonitor bool) {
	sess := d.sess.Load()
	if sess == nil {
		return
	}
	sess.stopOnce.Do(func() { close(sess.stop) })
	if !fromMonitor {
		sess.wg.Wait()
	}

	if !d.live.CompareAndSwap(true, false) {
		// The other side of the race already transitioned; by the time its
		// monitor goroutine exited (joined above) cleanup was complete.
		return
	}

	d.status.Store(int32(StatusDisconnected))
	_ = sess.disp.Close()
	d.sess.CompareAndSwap(sess, nil)

	d.infoMu.Lock()
	d.info.Connected = false
	d.infoMu.Unlock()

	d.buttonMask.Store(0)
	d.lockBits.Store(0)
	d.lockValid.Store(false)
	d.monitoring.Store(false)

	d.logger.Info("device disconnected")
	if cb := d.connectionCallback(); cb != nil {
		invokeConnectionCallback(cb, false)
	}
}

// SetBaudRate reconfigures the link to rate, clamped to the device's
// supported range. With validate set, the firmware is probed at the new
// rate; if the probe fails the link is restored to 115200 baud, and only if
// that recovery also fails is the device disconnected.
func (d *Device) SetBaudRate(rate int, validate bool) error {
	if !d.live.Load() {
		return ErrDisconnected
	}
	if rate < minBaudRate {
		rate = minBaudRate
	}
	if rate > maxBaudRate {
		rate = maxBaudRate
	}

	d.connMu.Lock()
	sess := d.sess.Load()
	if sess == nil {
		d.connMu.Unlock()
		return ErrDisconnected
	}
	port := d.Info().Port

	conn, err := d.upgradeBaud(sess.disp.Conn(), port, rate)
	if err != nil {
		d.connMu.Unlock()
		d.Disconnect()
		return fmt.Errorf("%w: switch to %d baud: %v", ErrHandshakeFailed, rate, err)
	}
	sess.disp.SwapConn(conn)
	d.connMu.Unlock()

	if !validate {
		return nil
	}

	if d.validateLink(sess) {
		d.logger.Info("baud rate changed", "port", port, "baud", rate)
		return nil
	}

	// The device is not answering at the new rate; fall back to the initial
	// rate before giving up on the connection entirely.
	d.connMu.Lock()
	recovered, rerr := d.upgradeBaud(sess.disp.Conn(), port, initialBaudRate)
	if rerr != nil {
		d.connMu.Unlock()
		d.Disconnect()
		return fmt.Errorf("%w: no response at %d baud and recovery failed: %v", ErrHandshakeFailed, rate, rerr)
	}
	sess.disp.SwapConn(recovered)
	d.connMu.Unlock()

	return fmt.Errorf("%w: device did not validate at %d baud", ErrHandshakeFailed, rate)
}

func (d *Device) validateLink(sess *session) bool {
	pending, err := sess.disp.Request("km.version()", true, validateTimeout)
	if err != nil {
		return false
	}
	resp, err := pending.Wait(context.Background())
	return err == nil && strings.Contains(resp, versionSignature)
}

// upgradeBaud drives the binary reconfiguration handshake on an open link:
// write the baud-change frame, drain, close, give the device time to
// retune, then reopen at the new rate. The input conn is consumed either
// way.
func (d *Device) upgradeBaud(conn transport.Conn, port string, rate int) (transport.Conn, error) {
	if conn == nil {
		return nil, ErrDisconnected
	}
	if _, err := conn.Write(baudChangeCommand(uint32(rate))); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Drain(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.Close()
	time.Sleep(baudSettleDelay)
	return d.dial(port, rate)
}

// healthMonitor periodically probes device liveness, backing off from 150ms
// to 500ms between probes, until stopped or the device disappears. Exactly
// one of the monitor and a concurrent Disconnect wins the live transition.
func (d *Device) healthMonitor(sess *session) {
	defer sess.wg.Done()
	interval := monitorInitialInterval
	for {
		select {
		case <-sess.stop:
			return
		case <-time.After(interval):
		}
		if !d.live.Load() {
			return
		}
		if !sess.disp.Alive() {
			d.logger.Warn("device liveness probe failed")
			d.teardown(true)
			return
		}
		if interval < monitorMaxInterval {
			interval *= 2
			if interval > monitorMaxInterval {
				interval = monitorMaxInterval
			}
		}
	}
}
