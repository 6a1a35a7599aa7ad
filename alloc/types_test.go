package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout(t *testing.T) {
	l, err := NewLayout(0x180, 8)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x180), l.Size)
	assert.Equal(t, uintptr(8), l.Align)

	for _, bad := range []uintptr{0, 3, 24} {
		_, err := NewLayout(16, bad)
		assert.True(t, errors.Is(err, ErrBadLayout), "align %d", bad)
	}
}

func TestMustLayoutPanics(t *testing.T) {
	assert.Panics(t, func() { MustLayout(16, 12) })
	assert.NotPanics(t, func() { MustLayout(16, 16) })
}

func TestAddrArithmetic(t *testing.T) {
	a := Addr(0x1003)
	assert.Equal(t, Addr(0x1010), a.AlignUp(16))
	assert.Equal(t, Addr(0x1000), a.AlignDown(0x1000))
	assert.False(t, a.IsAligned(8))
	assert.True(t, a.AlignUp(8).IsAligned(8))
	assert.Equal(t, Addr(0x1013), a.Add(0x10))
	assert.Equal(t, uintptr(3), a.Sub(0x1000))
	assert.Equal(t, "0x1003", a.String())
}
