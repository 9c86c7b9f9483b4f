package nn

import (
	"context"
	"math"
	"testing"

	"github.com/dashluu/numx/array"
	"github.com/dashluu/numx/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossEntropyLossMatchesDirectComputation(t *testing.T) {
	logits, err := array.FromFloat32([]int{2, 3}, []float32{
		1, 2, 3,
		0, 0, 0,
	}, array.RequiresGrad(true))
	require.NoError(t, err)

	targets, err := array.FromInt32([]int{2}, []int32{2, 1})
	require.NoError(t, err)

	loss, err := CrossEntropyLoss(logits, targets)
	require.NoError(t, err)

	v, err := loss.Item(context.Background())
	require.NoError(t, err)

	lse0 := math.Log(math.Exp(1) + math.Exp(2) + math.Exp(3))
	ce0 := lse0 - 3
	lse1 := math.Log(3) // log(e^0+e^0+e^0) = log(3)
	ce1 := lse1 - 0
	want := (ce0 + ce1) / 2

	assert.InDelta(t, want, v, 1e-4)
}

func TestCrossEntropyLossIsDifferentiable(t *testing.T) {
	logits, err := array.FromFloat32([]int{1, 2}, []float32{1, 1}, array.RequiresGrad(true))
	require.NoError(t, err)

	targets, err := array.FromInt32([]int{1}, []int32{0})
	require.NoError(t, err)

	loss, err := CrossEntropyLoss(logits, targets)
	require.NoError(t, err)

	require.NoError(t, loss.Backward(context.Background()))
	assert.NotNil(t, logits.Grad())
}

func TestOneHotMarksTargetClass(t *testing.T) {
	targets, err := array.FromInt32([]int{2}, []int32{0, 2})
	require.NoError(t, err)

	oh, err := oneHot(targets, 3)
	require.NoError(t, err)

	raw, err := oh.ToRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dtype.B8, raw.DType)
	assert.Equal(t, []bool{true, false, false, false, false, true}, raw.B8)
}
