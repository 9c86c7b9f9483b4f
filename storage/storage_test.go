package storage

import (
	"testing"

	"github.com/dashluu/numx/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewF32(t *testing.T) {
	s, err := New(dtype.F32, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	assert.True(t, s.Unique())
}

func TestRetainReleaseUnique(t *testing.T) {
	s := NewF32([]float32{1, 2, 3})
	assert.True(t, s.Unique())
	s.Retain()
	assert.False(t, s.Unique())
	s.Release()
	assert.True(t, s.Unique())
}

func TestVersionBump(t *testing.T) {
	s := NewF32([]float32{1})
	assert.Equal(t, int32(0), s.Version())
	s.Bump()
	assert.Equal(t, int32(1), s.Version())
}

func TestFloat64AtPromotes(t *testing.T) {
	s := NewB8([]bool{true, false})
	assert.Equal(t, 1.0, s.Float64At(0))
	assert.Equal(t, 0.0, s.Float64At(1))
}

func TestTypedAccessorPanicsOnMismatch(t *testing.T) {
	s := NewI32([]int32{1, 2})
	assert.Panics(t, func() { s.F32() })
}
