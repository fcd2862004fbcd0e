package gpib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	require := require.New(t)

	addr, err := NewAddress(0, 2, 0)
	require.NoError(err)
	require.False(addr.HasSecondary())
	require.Equal("GPIB0::2::INSTR", addr.String())

	addr, err = NewAddress(1, 30, 96)
	require.NoError(err)
	require.True(addr.HasSecondary())
	require.Equal("GPIB1::30::96::INSTR", addr.String())

	invalid := []Address{
		{Board: -1, Primary: 2},
		{Board: 0, Primary: -1},
		{Board: 0, Primary: 31},
		{Board: 0, Primary: 2, Secondary: 95},
		{Board: 0, Primary: 2, Secondary: 127},
		{Board: 0, Primary: 2, Secondary: 5},
	}
	for _, a := range invalid {
		_, err := NewAddress(a.Board, a.Primary, a.Secondary)
		require.Error(err, "%+v", a)
	}
}

func TestTimeoutTiers(t *testing.T) {
	require := require.New(t)

	require.Equal(time.Duration(0), TNone.Duration())
	require.Equal(10*time.Microsecond, T10us.Duration())
	require.Equal(10*time.Second, T10s.Duration())
	require.Equal(1000*time.Second, T1000s.Duration())
	require.Equal(T10s, DefaultTimeout)

	require.True(T1000s.Valid())
	require.False(Timeout(18).Valid())
	require.False(Timeout(-1).Valid())
	require.Equal(time.Duration(0), Timeout(18).Duration())

	require.Equal("10s", T10s.String())
	require.Equal("none", TNone.String())
	require.Equal("Timeout(18)", Timeout(18).String())
}

func TestTimeoutFromDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want Timeout
	}{
		{0, TNone},
		{-time.Second, TNone},
		{time.Nanosecond, T10us},
		{10 * time.Microsecond, T10us},
		{11 * time.Microsecond, T30us},
		{time.Second, T1s},
		{2 * time.Second, T3s},
		{999 * time.Second, T1000s},
	}

	for _, tt := range tests {
		got, err := TimeoutFromDuration(tt.d)
		require.NoError(t, err, tt.d)
		require.Equal(t, tt.want, got, tt.d)
	}

	_, err := TimeoutFromDuration(1001 * time.Second)
	require.Error(t, err)
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		in      string
		want    Timeout
		wantErr bool
	}{
		{"none", TNone, false},
		{"10s", T10s, false},
		{" 300MS ", T300ms, false},
		{"1.5s", T3s, false},
		{"2m", T300s, false},
		{"forever", TNone, true},
		{"2h", TNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeout(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
