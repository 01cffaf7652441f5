package makcu

import "encoding/binary"

// Link parameters. The device always enumerates at 115200 baud and is
// upgraded to the operational rate by the binary handshake; the setting is
// volatile and reverts on device power cycle.
const (
	initialBaudRate   = 115200
	highSpeedBaudRate = 4000000
	minBaudRate       = initialBaudRate
	maxBaudRate       = highSpeedBaudRate
)

// versionSignature is the literal every firmware version string contains.
const versionSignature = "km.MAKCU"

// baudChangeCommand renders the binary baud-change frame:
//
//	DE AD         header
//	05 00         payload length, little-endian
//	A5            opcode "set baud"
//	r0 r1 r2 r3   baud rate, little-endian
func baudChangeCommand(rate uint32) []byte {
	frame := make([]byte, 0, 9)
	frame = append(frame, 0xDE, 0xAD, 0x05, 0x00, 0xA5)
	frame = binary.LittleEndian.AppendUint32(frame, rate)
	return frame
}
