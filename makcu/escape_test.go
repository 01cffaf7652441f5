package makcu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeSerialArg(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "MAKCU-1337", "MAKCU-1337"},
		{"single quote", "it's", `it\'s`},
		{"backslash", `a\b`, `a\\b`},
		{"newline cr tab", "a\nb\rc\td", `a\nb\rc\td`},
		{"control byte", "a\x01b", `a\x01b`},
		{"del byte", "a\x7fb", `a\x7fb`},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, escapeSerialArg(tc.in))
		})
	}
}
