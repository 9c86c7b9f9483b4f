package array

import (
	"testing"

	"github.com/dashluu/numx/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradF32(t *testing.T, a *Array) []float32 {
	t.Helper()

	require.NotNil(t, a.Grad(), "expected gradient to be populated")

	raw, err := a.Grad().ToRaw(ctx())
	require.NoError(t, err)

	return raw.F32
}

func TestBackwardAddDistributesGradient(t *testing.T) {
	a, err := FromFloat32([]int{2}, []float32{1, 2}, RequiresGrad(true))
	require.NoError(t, err)
	b, err := FromFloat32([]int{2}, []float32{3, 4}, RequiresGrad(true))
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)

	loss, err := sum.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	assert.Equal(t, []float32{1, 1}, gradF32(t, a))
	assert.Equal(t, []float32{1, 1}, gradF32(t, b))
}

func TestBackwardMulUsesOtherOperand(t *testing.T) {
	a, err := FromFloat32([]int{2}, []float32{2, 3}, RequiresGrad(true))
	require.NoError(t, err)
	b, err := FromFloat32([]int{2}, []float32{5, 7}, RequiresGrad(true))
	require.NoError(t, err)

	prod, err := a.Mul(b)
	require.NoError(t, err)

	loss, err := prod.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	assert.Equal(t, []float32{5, 7}, gradF32(t, a))
	assert.Equal(t, []float32{2, 3}, gradF32(t, b))
}

func TestBackwardBroadcastSumsExtraAxes(t *testing.T) {
	a := mustF32(t, []int{2, 2}, []float32{1, 2, 3, 4})

	bias, err := FromFloat32([]int{2}, []float32{10, 20}, RequiresGrad(true))
	require.NoError(t, err)

	y, err := a.Add(bias)
	require.NoError(t, err)

	loss, err := y.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	// bias broadcasts over the leading axis of size 2, so its gradient sums
	// the two rows' contributions: [1+1, 1+1].
	assert.Equal(t, []float32{2, 2}, gradF32(t, bias))
}

func TestBackwardMatmul(t *testing.T) {
	a, err := FromFloat32([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}, RequiresGrad(true))
	require.NoError(t, err)
	b, err := FromFloat32([]int{3, 2}, []float32{1, 0, 0, 1, 1, 1}, RequiresGrad(true))
	require.NoError(t, err)

	c, err := a.Matmul(b)
	require.NoError(t, err)

	loss, err := c.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))

	// d(sum(A@B))/dA = ones(2,2) @ B^T; B^T's column sums are [1,1,2], and
	// every row of the ones matrix produces that same row again.
	assert.Equal(t, []float32{1, 1, 2, 1, 1, 2}, gradF32(t, a))
	// d(sum(A@B))/dB = A^T @ ones(2,2): column sums of A repeated twice.
	assert.Equal(t, []float32{5, 5, 7, 7, 9, 9}, gradF32(t, b))
}

func TestBackwardMaximumTieBreaksToLeftOperand(t *testing.T) {
	a, err := FromFloat32([]int{3}, []float32{1, 5, 5}, RequiresGrad(true))
	require.NoError(t, err)
	b, err := FromFloat32([]int{3}, []float32{2, 5, 1}, RequiresGrad(true))
	require.NoError(t, err)

	m, err := a.Maximum(b)
	require.NoError(t, err)

	loss, err := m.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	// element 0: b wins (2>1) -> grad flows to b only.
	// element 1: tie -> grad flows entirely to a.
	// element 2: a wins (5>1) -> grad flows to a only.
	assert.Equal(t, []float32{0, 1, 1}, gradF32(t, a))
	assert.Equal(t, []float32{1, 0, 0}, gradF32(t, b))
}

func TestBackwardMaxScattersToAllTiedPositions(t *testing.T) {
	a, err := FromFloat32([]int{3}, []float32{9, 9, 1}, RequiresGrad(true))
	require.NoError(t, err)

	m, err := a.Max()
	require.NoError(t, err)

	require.NoError(t, m.Backward(ctx()))
	assert.Equal(t, []float32{1, 1, 0}, gradF32(t, a))
}

func TestBackwardReshapeAndPermuteRoundTripGradShape(t *testing.T) {
	a, err := FromFloat32([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}, RequiresGrad(true))
	require.NoError(t, err)

	tr, err := a.Transpose(0, 1)
	require.NoError(t, err)

	loss, err := tr.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, gradF32(t, a))
}

func TestBackwardSliceScattersIntoOriginalShape(t *testing.T) {
	a, err := FromFloat32([]int{4}, []float32{1, 2, 3, 4}, RequiresGrad(true))
	require.NoError(t, err)

	start, stop := 1, 3
	s, err := a.Slice([]shape.SliceSpec{{Start: &start, Stop: &stop, Step: 1}})
	require.NoError(t, err)

	loss, err := s.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	assert.Equal(t, []float32{0, 1, 1, 0}, gradF32(t, a))
}

func TestBackwardContiguousIsIdentityPassthrough(t *testing.T) {
	a, err := FromFloat32([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}, RequiresGrad(true))
	require.NoError(t, err)

	tr, err := a.Transpose(0, 1)
	require.NoError(t, err)

	c := tr.Contiguous()

	loss, err := c.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, gradF32(t, a))
}

func TestBackwardNonScalarRootImplicitlySums(t *testing.T) {
	a, err := FromFloat32([]int{3}, []float32{1, 2, 3}, RequiresGrad(true))
	require.NoError(t, err)

	y, err := a.Mul(a)
	require.NoError(t, err)

	require.NoError(t, y.Backward(ctx()))
	// d(sum(a*a))/da = 2a
	assert.Equal(t, []float32{2, 4, 6}, gradF32(t, a))
}

func TestBackwardNoOpWhenRootDoesNotRequireGrad(t *testing.T) {
	a := mustF32(t, []int{2}, []float32{1, 2})

	loss, err := a.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	assert.Nil(t, a.Grad())
}

func TestClearGradDiscardsAccumulatedGradient(t *testing.T) {
	a, err := FromFloat32([]int{2}, []float32{1, 2}, RequiresGrad(true))
	require.NoError(t, err)

	loss, err := a.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Backward(ctx()))
	require.NotNil(t, a.Grad())

	a.ClearGrad()
	assert.Nil(t, a.Grad())
}

func TestBackwardDetectsInplaceConflict(t *testing.T) {
	a, err := FromFloat32([]int{2}, []float32{1, 2}, RequiresGrad(true))
	require.NoError(t, err)

	y := a.Exp()

	loss, err := y.Sum()
	require.NoError(t, err)

	require.NoError(t, loss.Eval(ctx()))

	// y's storage is realized and uniquely owned at this point; mutating it
	// in place bumps the same Storage object loss's graph already captured
	// a version for, simulating a buffer reused and overwritten after
	// forward but before backward runs.
	require.NoError(t, y.NegInPlace().Eval(ctx()))

	err = loss.Backward(ctx())
	require.ErrorIs(t, err, ErrInplaceConflict)
}

func TestOpStringFallsBackForUnknownOp(t *testing.T) {
	assert.Equal(t, "add", OpAdd.String())
	assert.Equal(t, "op(999)", Op(999).String())
}
