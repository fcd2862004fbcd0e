package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Level
		wantErr bool
	}{
		{name: "debug", input: "debug", want: DebugLevel},
		{name: "upper case", input: "INFO", want: InfoLevel},
		{name: "empty", input: "", want: InfoLevel},
		{name: "warning alias", input: "warning", want: WarnLevel},
		{name: "error", input: " error ", want: ErrorLevel},
		{name: "fatal", input: "fatal", want: FatalLevel},
		{name: "unknown", input: "verbose", want: InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, level)
		})
	}
}

func TestSlogLogger(t *testing.T) {
	t.Setenv("ENV", "production")
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false)
	require.Equal(InfoLevel, l.Level())

	l.Debug("hidden")
	require.Zero(buf.Len())

	child := l.With("primary", 2)
	child.Info("device cleared", "handle", 5)

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("device cleared", rec["msg"])
	require.Equal("INFO", rec["level"])
	require.InDelta(2, rec["primary"], 0)
	require.InDelta(5, rec["handle"], 0)
	require.Contains(rec, "ts")

	// level is shared between parent and child
	buf.Reset()
	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, child.Level())
	child.Debug("visible")
	require.Contains(buf.String(), "visible")
}

func TestDefaultLogger(t *testing.T) {
	require := require.New(t)

	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	SetLogger(nil)
	require.Same(prev, GetLogger())

	m := NewMockLogger()
	m.On("Warn", "device offline", []any{"pad", 2}).Return().Once()
	SetLogger(m)
	require.Same(m, GetLogger())

	Warn("device offline", "pad", 2)
	m.AssertExpectations(t)
}

func TestNewSlogFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	require.Equal(t, WarnLevel, NewSlogFromEnv().Level())

	t.Setenv("LOG_LEVEL", "chatty")
	require.Equal(t, InfoLevel, NewSlogFromEnv().Level())
}
