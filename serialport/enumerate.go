package serialport

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// USB identity of the MAKCU device. The CH343 description is what current
// hardware reports; CH340 is the fallback for older converter revisions.
const (
	VendorID            = "1A86"
	ProductID           = "55D3"
	PrimaryDescription  = "USB-Enhanced-SERIAL CH343"
	FallbackDescription = "USB-SERIAL CH340"
)

// PortInfo describes one enumerated serial port.
type PortInfo struct {
	Name        string
	Description string
	VID         string
	PID         string
}

// ListPorts returns the names of every serial port the OS knows about.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate ports: %v", ErrPortUnavailable, err)
	}
	return ports, nil
}

// FindDevicePorts returns the candidate MAKCU ports: USB serial ports whose
// VID/PID match the device, or whose product description matches the CH343
// or CH340 heuristics.
func FindDevicePorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate ports: %v", ErrPortUnavailable, err)
	}
	var found []PortInfo
	for _, d := range details {
		info := PortInfo{Name: d.Name, Description: d.Product, VID: d.VID, PID: d.PID}
		if matchesDevice(info) {
			found = append(found, info)
		}
	}
	return found, nil
}

func matchesDevice(info PortInfo) bool {
	if strings.EqualFold(info.VID, VendorID) && strings.EqualFold(info.PID, ProductID) {
		return true
	}
	if strings.Contains(info.Description, PrimaryDescription) {
		return true
	}
	return strings.Contains(info.Description, FallbackDescription)
}
