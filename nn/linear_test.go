package nn

import (
	"context"
	"testing"

	"github.com/dashluu/numx/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLinearRejectsNonPositiveFeatures(t *testing.T) {
	_, err := NewLinear("l", 0, 4)
	require.Error(t, err)

	_, err = NewLinear("l", 4, 0)
	require.Error(t, err)
}

func TestNewLinearDefaultsToBias(t *testing.T) {
	l, err := NewLinear("l", 3, 2)
	require.NoError(t, err)
	require.NotNil(t, l.Bias)
	assert.Len(t, l.Parameters(), 2)
}

func TestNewLinearWithoutBias(t *testing.T) {
	l, err := NewLinear("l", 3, 2, WithoutBias())
	require.NoError(t, err)
	assert.Nil(t, l.Bias)
	assert.Len(t, l.Parameters(), 1)
}

func TestLinearForwardShapeAndValue(t *testing.T) {
	l, err := NewLinear("l", 3, 2, WithoutBias())
	require.NoError(t, err)

	w, err := array.FromFloat32([]int{2, 3}, []float32{1, 0, 0, 0, 1, 0}, array.RequiresGrad(true))
	require.NoError(t, err)
	l.Weight.Value = w

	x, err := array.FromFloat32([]int{1, 3}, []float32{5, 7, 9})
	require.NoError(t, err)

	y, err := l.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, y.Shape())

	raw, err := y.ToRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 7}, raw.F32)
}

func TestLinearForwardAddsBias(t *testing.T) {
	l, err := NewLinear("l", 2, 2)
	require.NoError(t, err)

	w, err := array.FromFloat32([]int{2, 2}, []float32{1, 0, 0, 1}, array.RequiresGrad(true))
	require.NoError(t, err)
	l.Weight.Value = w

	b, err := array.FromFloat32([]int{2}, []float32{10, 20}, array.RequiresGrad(true))
	require.NoError(t, err)
	l.Bias.Value = b

	x, err := array.FromFloat32([]int{1, 2}, []float32{1, 2})
	require.NoError(t, err)

	y, err := l.Forward(x)
	require.NoError(t, err)

	raw, err := y.ToRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 22}, raw.F32)
}
