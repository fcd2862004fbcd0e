package prologix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapePassThrough(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "*IDN?", "*IDN?"},
		{"plus", "VOLT +1.5", "VOLT \x1b+1.5"},
		{"terminators", "A\r\nB", "A\x1b\r\x1b\nB"},
		{"escape", "\x1b", "\x1b\x1b"},
		{"binary", "\x00\xff", "\x00\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, []byte(tt.want), escape([]byte(tt.in)))
		})
	}

	require.Empty(t, escape(nil))
}
