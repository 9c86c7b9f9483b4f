package nn

import (
	"context"
	"math"
	"testing"

	"github.com/dashluu/numx/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReLUForward(t *testing.T) {
	r := NewReLU()
	assert.Empty(t, r.Parameters())

	x, err := array.FromFloat32([]int{4}, []float32{-2, -0.5, 0, 3})
	require.NoError(t, err)

	y, err := r.Forward(x)
	require.NoError(t, err)

	raw, err := y.ToRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 3}, raw.F32)
}

func TestSoftmaxSumsToOne(t *testing.T) {
	s := NewSoftmax(-1)

	x, err := array.FromFloat32([]int{1, 3}, []float32{1, 2, 3})
	require.NoError(t, err)

	y, err := s.Forward(x)
	require.NoError(t, err)

	raw, err := y.ToRaw(context.Background())
	require.NoError(t, err)

	sum := 0.0
	for _, v := range raw.F32 {
		sum += float64(v)
	}

	assert.InDelta(t, 1.0, sum, 1e-5)

	expDenom := math.Exp(1-3) + math.Exp(2-3) + math.Exp(3-3)
	assert.InDelta(t, math.Exp(1-3)/expDenom, raw.F32[0], 1e-5)
	assert.InDelta(t, math.Exp(2-3)/expDenom, raw.F32[1], 1e-5)
	assert.InDelta(t, math.Exp(3-3)/expDenom, raw.F32[2], 1e-5)
}

func TestSoftmaxBackwardIsExactThroughMaxSubtraction(t *testing.T) {
	s := NewSoftmax(-1)

	x, err := array.FromFloat32([]int{1, 2}, []float32{1, 1}, array.RequiresGrad(true))
	require.NoError(t, err)

	y, err := s.Forward(x)
	require.NoError(t, err)

	loss, err := y.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(context.Background()))

	// softmax([1,1]) = [0.5, 0.5]; d(sum(softmax(x)))/dx is always 0 since
	// softmax's outputs always sum to exactly 1 regardless of x.
	raw, err := x.Grad().ToRaw(context.Background())
	require.NoError(t, err)

	for _, g := range raw.F32 {
		assert.InDelta(t, 0.0, g, 1e-5)
	}
}
