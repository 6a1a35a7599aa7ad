package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymous(t *testing.T) {
	data, cleanup, err := Anonymous(1 << 16)
	require.NoError(t, err)
	require.Len(t, data, 1<<16)

	assert.Zero(t, data[0])
	data[0], data[len(data)-1] = 0xaa, 0x55
	assert.Equal(t, byte(0xaa), data[0])

	require.NoError(t, cleanup())
	require.NoError(t, cleanup(), "second cleanup is a no-op")
}

func TestAnonymous_InvalidSize(t *testing.T) {
	_, _, err := Anonymous(0)
	assert.Error(t, err)
}
