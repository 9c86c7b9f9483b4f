package optim

import (
	"context"
	"testing"

	"github.com/dashluu/numx/array"
	"github.com/dashluu/numx/nn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientDescentStepAppliesUpdate(t *testing.T) {
	ctx := context.Background()

	v, err := array.FromFloat32([]int{3}, []float32{1, 2, 3}, array.RequiresGrad(true), array.Name("w"))
	require.NoError(t, err)

	p := &nn.Parameter{Name: "w", Value: v}

	loss, err := v.Sum()
	require.NoError(t, err)
	require.NoError(t, loss.Backward(ctx))

	opt := NewGradientDescent(0.1)
	require.NoError(t, opt.Step(ctx, []*nn.Parameter{p}))

	raw, err := p.Value.ToRaw(ctx)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.9, 1.9, 2.9}, toFloat64s(raw.F32), 1e-5)
}

func TestGradientDescentRebindsToFreshLeaf(t *testing.T) {
	ctx := context.Background()

	v, err := array.FromFloat32([]int{2}, []float32{1, 2}, array.RequiresGrad(true), array.Name("w"))
	require.NoError(t, err)

	p := &nn.Parameter{Name: "w", Value: v}

	loss, err := v.Sum()
	require.NoError(t, err)
	require.NoError(t, loss.Backward(ctx))

	opt := NewGradientDescent(0.5)
	require.NoError(t, opt.Step(ctx, []*nn.Parameter{p}))

	assert.True(t, p.Value.IsLeaf())
	assert.True(t, p.Value.RequiresGrad())
	assert.Equal(t, "w", p.Value.Name())
	assert.NotSame(t, v, p.Value)
}

func TestGradientDescentSkipsParameterWithoutGradient(t *testing.T) {
	ctx := context.Background()

	v, err := array.FromFloat32([]int{2}, []float32{1, 2}, array.RequiresGrad(true), array.Name("w"))
	require.NoError(t, err)

	p := &nn.Parameter{Name: "w", Value: v}

	opt := NewGradientDescent(0.1)
	require.NoError(t, opt.Step(ctx, []*nn.Parameter{p}))

	assert.Same(t, v, p.Value)
}

func toFloat64s(vs []float32) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}

	return out
}
