package array

import (
	"fmt"

	"github.com/dashluu/numx/dtype"
	"github.com/dashluu/numx/shape"
)

// contiguousView builds a fresh row-major view of sh. Callers only ever
// pass a shape already validated by an existing Array, so the error
// shape.New can return (a non-positive dimension) cannot occur here.
func contiguousView(sh []int) shape.View {
	v, _ := shape.New(sh)

	return v
}

func cloneAxes(axes []int) []int {
	if axes == nil {
		return nil
	}

	out := make([]int, len(axes))
	copy(out, axes)

	return out
}

// unary builds a fresh elementwise node reading a through its own
// (possibly strided) view and writing a new contiguous buffer of shape
// a.Shape() and dtype dt.
func unary(op Op, a *Array, dt dtype.DType) *Array {
	return newNode(op, []*Array{a}, Params{}, contiguousView(a.Shape()), dt)
}

// Neg returns -a.
func (a *Array) Neg() *Array { return unary(OpNeg, a, a.dtype) }

// Exp returns element-wise e^a.
func (a *Array) Exp() *Array { return unary(OpExp, a, a.dtype) }

// Log returns element-wise natural log of a; non-positive inputs yield NaN
// at realization, not a construction-time error.
func (a *Array) Log() *Array { return unary(OpLog, a, a.dtype) }

// Sqrt returns element-wise square root; negative inputs yield NaN at
// realization.
func (a *Array) Sqrt() *Array { return unary(OpSqrt, a, a.dtype) }

// Sq returns element-wise a*a.
func (a *Array) Sq() *Array { return unary(OpSq, a, a.dtype) }

// Recip returns element-wise 1/a; a zero input yields +/-Inf at
// realization.
func (a *Array) Recip() *Array { return unary(OpRecip, a, a.dtype) }

func unaryInPlace(op Op, a *Array) *Array {
	return newNode(op, []*Array{a}, Params{InPlace: true}, a.view, a.dtype)
}

// NegInPlace is Neg, writing into a's own storage. Realization fails with
// ErrInplaceConflict unless a's storage is contiguous and uniquely owned.
func (a *Array) NegInPlace() *Array { return unaryInPlace(OpNeg, a) }

// ExpInPlace is Exp, writing into a's own storage.
func (a *Array) ExpInPlace() *Array { return unaryInPlace(OpExp, a) }

// LogInPlace is Log, writing into a's own storage.
func (a *Array) LogInPlace() *Array { return unaryInPlace(OpLog, a) }

// SqrtInPlace is Sqrt, writing into a's own storage.
func (a *Array) SqrtInPlace() *Array { return unaryInPlace(OpSqrt, a) }

// RecipInPlace is Recip, writing into a's own storage.
func (a *Array) RecipInPlace() *Array { return unaryInPlace(OpRecip, a) }

// Astype casts a to dt, allocating a new contiguous buffer. Widening is
// exact; narrowing to an integer target truncates toward zero; float
// narrowing rounds nearest-even; bool reads as {false,true} -> {0,1}.
func (a *Array) Astype(dt dtype.DType) *Array {
	if dt == a.dtype {
		return a
	}

	return newNode(OpCast, []*Array{a}, Params{CastTo: dt}, contiguousView(a.Shape()), dt)
}

// expandTo broadcasts a to target, inserting an Expand node only when the
// shapes actually differ.
func (a *Array) expandTo(target []int) (*Array, error) {
	if shape.Equal(a.Shape(), target) {
		return a, nil
	}

	v, err := a.view.BroadcastTo(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	return newNode(OpExpand, []*Array{a}, Params{}, v, a.dtype), nil
}

// Expand broadcasts a to target, an explicit, user-visible form of the
// broadcasting every binary op performs on its operands implicitly.
func (a *Array) Expand(target []int) (*Array, error) {
	return a.expandTo(target)
}

func binary(op Op, a, b *Array, resultDType func(dtype.DType, dtype.DType) dtype.DType) (*Array, error) {
	target, err := shape.Broadcast(a.Shape(), b.Shape())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	ae, err := a.expandTo(target)
	if err != nil {
		return nil, err
	}

	be, err := b.expandTo(target)
	if err != nil {
		return nil, err
	}

	dt := resultDType(a.DType(), b.DType())

	return newNode(op, []*Array{ae, be}, Params{}, contiguousView(target), dt), nil
}

// Add returns a+b, broadcasting shapes and promoting dtypes per the usual
// arithmetic rules.
func (a *Array) Add(b *Array) (*Array, error) { return binary(OpAdd, a, b, dtype.Promote) }

// Sub returns a-b.
func (a *Array) Sub(b *Array) (*Array, error) { return binary(OpSub, a, b, dtype.Promote) }

// Mul returns a*b.
func (a *Array) Mul(b *Array) (*Array, error) { return binary(OpMul, a, b, dtype.Promote) }

// Div returns a/b; the result always promotes to f32.
func (a *Array) Div(b *Array) (*Array, error) { return binary(OpDiv, a, b, dtype.PromoteDiv) }

// Maximum returns the elementwise maximum of a and b. At a tie, gradient
// flows entirely to a; see Backward.
func (a *Array) Maximum(b *Array) (*Array, error) { return binary(OpMaximum, a, b, dtype.Promote) }

// Minimum returns the elementwise minimum of a and b. At a tie, gradient
// flows entirely to a.
func (a *Array) Minimum(b *Array) (*Array, error) { return binary(OpMinimum, a, b, dtype.Promote) }

// Eq returns a boolean elementwise a == b.
func (a *Array) Eq(b *Array) (*Array, error) { return binary(OpEq, a, b, dtype.Compare) }

// Lt returns a boolean elementwise a < b.
func (a *Array) Lt(b *Array) (*Array, error) { return binary(OpLt, a, b, dtype.Compare) }

// Le returns a boolean elementwise a <= b.
func (a *Array) Le(b *Array) (*Array, error) { return binary(OpLe, a, b, dtype.Compare) }

// Gt returns a boolean elementwise a > b.
func (a *Array) Gt(b *Array) (*Array, error) { return binary(OpGt, a, b, dtype.Compare) }

// Ge returns a boolean elementwise a >= b.
func (a *Array) Ge(b *Array) (*Array, error) { return binary(OpGe, a, b, dtype.Compare) }

func binaryInPlace(op Op, a, b *Array) (*Array, error) {
	be, err := b.expandTo(a.Shape())
	if err != nil {
		return nil, err
	}

	return newNode(op, []*Array{a, be}, Params{InPlace: true}, a.view, a.dtype), nil
}

// AddInPlace adds b into a's own storage; b must broadcast to a's shape,
// and the dtype of the result is a's own dtype (no promotion).
func (a *Array) AddInPlace(b *Array) (*Array, error) { return binaryInPlace(OpAdd, a, b) }

// SubInPlace subtracts b from a's own storage.
func (a *Array) SubInPlace(b *Array) (*Array, error) { return binaryInPlace(OpSub, a, b) }

// MulInPlace multiplies a's own storage by b.
func (a *Array) MulInPlace(b *Array) (*Array, error) { return binaryInPlace(OpMul, a, b) }

// DivInPlace divides a's own storage by b.
func (a *Array) DivInPlace(b *Array) (*Array, error) { return binaryInPlace(OpDiv, a, b) }

// reducedShape computes the keep-dim output shape for a reduction over
// axes (nil/empty means "reduce all axes").
func reducedShape(sh []int, axes []int) ([]int, error) {
	out := make([]int, len(sh))
	copy(out, sh)

	if len(axes) == 0 {
		for i := range out {
			out[i] = 1
		}

		return out, nil
	}

	rank := len(sh)
	for _, ax := range axes {
		na, err := shape.NormalizeAxis(ax, rank)
		if err != nil {
			return nil, err
		}

		out[na] = 1
	}

	return out, nil
}

func (a *Array) reduce(op Op, axes []int, dt dtype.DType) (*Array, error) {
	sh, err := reducedShape(a.Shape(), axes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAxisOutOfRange, err)
	}

	var norm []int
	if len(axes) > 0 {
		norm = make([]int, len(axes))
		for i, ax := range axes {
			norm[i], _ = shape.NormalizeAxis(ax, a.view.Dims())
		}
	}

	params := Params{Axes: norm, KeepDim: true}

	return newNode(op, []*Array{a}, params, contiguousView(sh), dt), nil
}

// Sum reduces a over axes (all axes when none given), keeping reduced axes
// as size 1. An empty set of elements sums to 0.
func (a *Array) Sum(axes ...int) (*Array, error) { return a.reduce(OpSum, axes, a.dtype) }

// Mean reduces a over axes, promoting to f32; reducing zero elements
// yields NaN (0/0).
func (a *Array) Mean(axes ...int) (*Array, error) { return a.reduce(OpMean, axes, dtype.F32) }

// Max reduces a over axes. Reducing zero elements is ErrEmptyReduce.
func (a *Array) Max(axes ...int) (*Array, error) { return a.reduce(OpMax, axes, a.dtype) }

// Min reduces a over axes. Reducing zero elements is ErrEmptyReduce.
func (a *Array) Min(axes ...int) (*Array, error) { return a.reduce(OpMin, axes, a.dtype) }

func (a *Array) argReduce(op Op, axis int) (*Array, error) {
	rank := a.view.Dims()

	na, err := shape.NormalizeAxis(axis, rank)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAxisOutOfRange, err)
	}

	sh := a.Shape()
	sh[na] = 1
	params := Params{Axes: []int{na}, KeepDim: true}

	return newNode(op, []*Array{a}, params, contiguousView(sh), dtype.I32), nil
}

// Argmax returns the index of the maximum element along axis, keep-dim.
// Ties resolve to the smallest index. Non-differentiable.
func (a *Array) Argmax(axis int) (*Array, error) { return a.argReduce(OpArgmax, axis) }

// Argmin returns the index of the minimum element along axis, keep-dim.
// Ties resolve to the smallest index. Non-differentiable.
func (a *Array) Argmin(axis int) (*Array, error) { return a.argReduce(OpArgmin, axis) }

// Matmul returns the batched matrix product of a and b: both must have
// rank >= 2, their leading (batch) dimensions broadcast together, and
// their trailing two dimensions must be (m,k) and (k,n).
func (a *Array) Matmul(b *Array) (*Array, error) {
	ra, rb := a.view.Dims(), b.view.Dims()
	if ra < 2 || rb < 2 {
		return nil, fmt.Errorf("%w: matmul requires rank >= 2, got %d and %d", ErrShapeMismatch, ra, rb)
	}

	ash, bsh := a.Shape(), b.Shape()
	m, ka := ash[ra-2], ash[ra-1]
	kb, n := bsh[rb-2], bsh[rb-1]

	if ka != kb {
		return nil, fmt.Errorf("%w: matmul inner dimensions %d and %d differ", ErrShapeMismatch, ka, kb)
	}

	batch, err := shape.Broadcast(ash[:ra-2], bsh[:rb-2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	outShape := append(append(make([]int, 0, len(batch)+2), batch...), m, n)
	dt := dtype.Promote(a.DType(), b.DType())

	return newNode(OpMatmul, []*Array{a, b}, Params{}, contiguousView(outShape), dt), nil
}

// Permute reorders a's axes according to axes, a permutation of
// {0,...,rank-1}; negative entries count from the end. No data is copied.
func (a *Array) Permute(axes []int) (*Array, error) {
	v, err := a.view.Permute(axes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	norm := make([]int, len(axes))

	for i, ax := range axes {
		na, nerr := shape.NormalizeAxis(ax, len(axes))
		if nerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrAxisOutOfRange, nerr)
		}

		norm[i] = na
	}

	return newNode(OpPermute, []*Array{a}, Params{Axes: norm}, v, a.dtype), nil
}

// transposeAxes expands a Transpose(i, j) call into the equivalent
// Permute axis list: reversing the closed interval [min(i,j), max(i,j)].
func transposeAxes(rank, i, j int) ([]int, error) {
	ni, err := shape.NormalizeAxis(i, rank)
	if err != nil {
		return nil, err
	}

	nj, err := shape.NormalizeAxis(j, rank)
	if err != nil {
		return nil, err
	}

	lo, hi := ni, nj
	if lo > hi {
		lo, hi = hi, lo
	}

	axes := make([]int, rank)
	for k := range axes {
		axes[k] = k
	}

	for l, r := lo, hi; l < r; l, r = l+1, r-1 {
		axes[l], axes[r] = axes[r], axes[l]
	}

	return axes, nil
}

// Transpose reverses the order of axes in the closed interval
// [min(i,j), max(i,j)]; a multi-axis reversal, not a pairwise swap.
func (a *Array) Transpose(i, j int) (*Array, error) {
	axes, err := transposeAxes(a.view.Dims(), i, j)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAxisOutOfRange, err)
	}

	return a.Permute(axes)
}

// Reshape returns a view of newShape with the same element count. If a is
// not contiguous, it is realized to a contiguous buffer first.
func (a *Array) Reshape(newShape []int) (*Array, error) {
	src := a
	if !a.view.IsContiguous() {
		src = a.Contiguous()
	}

	v, err := src.view.Reshape(newShape)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	return newNode(OpReshape, []*Array{src}, Params{}, v, a.dtype), nil
}

// Flatten collapses the axes in [start, end] into a single axis.
func (a *Array) Flatten(start, end int) (*Array, error) {
	src := a
	if !a.view.IsContiguous() {
		src = a.Contiguous()
	}

	v, err := src.view.Flatten(start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAxisOutOfRange, err)
	}

	rank := a.view.Dims()

	ns, err := shape.NormalizeAxis(start, rank)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAxisOutOfRange, err)
	}

	ne, err := shape.NormalizeAxis(end, rank)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAxisOutOfRange, err)
	}

	return newNode(OpFlatten, []*Array{src}, Params{FlattenLo: ns, FlattenHi: ne}, v, a.dtype), nil
}

// Slice returns a view over the per-axis (start,stop,step) ranges in
// specs; trailing axes not named pass through unchanged. No data is
// copied.
func (a *Array) Slice(specs []shape.SliceSpec) (*Array, error) {
	v, err := a.view.Slice(specs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	return newNode(OpSlice, []*Array{a}, Params{SliceSpecs: specs}, v, a.dtype), nil
}

// Unsqueeze inserts a size-1 axis at axis (-1 appends at the end). Treated
// as a Reshape for realization and backward purposes: it never changes
// the flat addressing of existing elements.
func (a *Array) Unsqueeze(axis int) (*Array, error) {
	v, err := a.view.Unsqueeze(axis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAxisOutOfRange, err)
	}

	return newNode(OpReshape, []*Array{a}, Params{}, v, a.dtype), nil
}

// Contiguous forces realization into a freshly packed row-major buffer,
// returning a unchanged if it is already contiguous.
func (a *Array) Contiguous() *Array {
	if a.view.IsContiguous() {
		return a
	}

	return newNode(OpContiguous, []*Array{a}, Params{}, contiguousView(a.Shape()), a.dtype)
}

// Detach returns a node with the same view, dtype and storage as a but
// requires_grad forced false: it severs the autograd edge without copying
// anything.
func (a *Array) Detach() *Array {
	n := newNode(OpDetach, []*Array{a}, Params{}, a.view, a.dtype)
	n.requiresGrad = false

	return n
}
