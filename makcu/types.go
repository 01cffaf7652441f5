package makcu

import "strings"

// MouseButton identifies one of the five physical mouse buttons. The
// numeric value is the bit position in the button mask and the index into
// the command cache.
type MouseButton uint8

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
	ButtonSide1
	ButtonSide2

	// ButtonUnknown is the sentinel returned when parsing an unrecognized
	// button name.
	ButtonUnknown MouseButton = 0xFF
)

const buttonCount = 5

var buttonNames = [buttonCount]string{"LEFT", "RIGHT", "MIDDLE", "SIDE1", "SIDE2"}

// buttonCommandNames are the names the command grammar uses.
var buttonCommandNames = [buttonCount]string{"left", "right", "middle", "ms1", "ms2"}

func (b MouseButton) String() string {
	if int(b) < buttonCount {
		return buttonNames[b]
	}
	return "UNKNOWN"
}

// ParseMouseButton maps a button name (case-insensitive) to its MouseButton,
// returning ButtonUnknown for anything unrecognized.
func ParseMouseButton(name string) MouseButton {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range buttonNames {
		if n == upper {
			return MouseButton(i)
		}
	}
	return ButtonUnknown
}

// LockTarget identifies an input the device can mask from the host OS: a
// movement axis or a button. The numeric value is the bit position in the
// lock-state cache and the index into the command cache.
type LockTarget uint8

const (
	LockX LockTarget = iota
	LockY
	LockLeft
	LockRight
	LockMiddle
	LockSide1
	LockSide2
)

const lockTargetCount = 7

var lockTargetNames = [lockTargetCount]string{"X", "Y", "LEFT", "RIGHT", "MIDDLE", "SIDE1", "SIDE2"}

// lockSuffixes are the km.lock_<suffix> command suffixes.
var lockSuffixes = [lockTargetCount]string{"mx", "my", "ml", "mr", "mm", "ms1", "ms2"}

func (t LockTarget) String() string {
	if int(t) < lockTargetCount {
		return lockTargetNames[t]
	}
	return "UNKNOWN"
}

// ConnectionStatus is the lifecycle state of a Device. Transitions are made
// only by the connection lifecycle code.
type ConnectionStatus int32

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusConnectionError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusConnectionError:
		return "CONNECTION_ERROR"
	default:
		return "UNKNOWN"
	}
}

// DeviceInfo describes a discovered or connected device.
type DeviceInfo struct {
	Port        string
	Description string
	VID         string
	PID         string
	Connected   bool
}

// ButtonCallback observes physical button transitions. Invoked from the
// listener goroutine; keep it fast.
type ButtonCallback func(button MouseButton, pressed bool)

// ConnectionCallback observes connection transitions: true exactly once per
// successful connect, false exactly once per disconnect, whether initiated
// by the user or by the health monitor.
type ConnectionCallback func(connected bool)
