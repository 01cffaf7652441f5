package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesDevice(t *testing.T) {
	cases := []struct {
		name string
		info PortInfo
		want bool
	}{
		{
			name: "vid pid match",
			info: PortInfo{Name: "COM3", VID: "1A86", PID: "55D3"},
			want: true,
		},
		{
			name: "vid pid match lowercase",
			info: PortInfo{Name: "/dev/ttyACM0", VID: "1a86", PID: "55d3"},
			want: true,
		},
		{
			name: "ch343 description",
			info: PortInfo{Name: "COM4", Description: "USB-Enhanced-SERIAL CH343 (COM4)"},
			want: true,
		},
		{
			name: "ch340 fallback description",
			info: PortInfo{Name: "COM5", Description: "USB-SERIAL CH340"},
			want: true,
		},
		{
			name: "wrong pid and description",
			info: PortInfo{Name: "COM6", VID: "1A86", PID: "7523", Description: "USB2.0-Serial"},
			want: false,
		},
		{
			name: "unrelated device",
			info: PortInfo{Name: "/dev/ttyUSB0", VID: "0403", PID: "6001", Description: "FT232R USB UART"},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchesDevice(tc.info))
		})
	}
}
