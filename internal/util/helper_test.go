package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneSlice(t *testing.T) {
	require := require.New(t)

	src := []byte("*IDN?")
	clone := CloneSlice(src, 0)
	require.Equal(src, clone)

	clone[0] = '#'
	require.Equal(byte('*'), src[0], "clone must not share storage")

	require.Equal([]byte("*ID"), CloneSlice(src, 3))
	require.Equal([]byte{'*', 'I', 'D', 'N', '?', 0, 0}, CloneSlice(src, 7))
	require.Empty(CloneSlice([]byte{}, 0))
}
