package makcu

import (
	"errors"

	"github.com/makcu/makcu-go/serialport"
	"github.com/makcu/makcu-go/transport"
)

// Error kinds surfaced by the client. The transport sentinels and the
// serialport unavailable and I/O sentinels are re-exported here. An open
// that fails for lack of permission or a rejected port configuration wraps
// serialport.ErrPermissionDenied or serialport.ErrConfigRejected, which
// have no alias in this package.
var (
	ErrDisconnected       = transport.ErrDisconnected
	ErrTimedOut           = transport.ErrTimedOut
	ErrPortOpenFailed     = serialport.ErrPortUnavailable
	ErrPortIO             = serialport.ErrIOFailed
	ErrInvalidArgument    = errors.New("makcu: invalid argument")
	ErrProtocolUnexpected = errors.New("makcu: unexpected protocol response")
	ErrHandshakeFailed    = errors.New("makcu: baud handshake failed")
	ErrNoDevice           = errors.New("makcu: no device found")
)
