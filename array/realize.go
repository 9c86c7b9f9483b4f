package array

import (
	"context"
	"fmt"
	"math"

	"github.com/dashluu/numx/dtype"
	"github.com/dashluu/numx/internal/xblas"
	"github.com/dashluu/numx/profile"
	"github.com/dashluu/numx/rng"
	"github.com/dashluu/numx/shape"
	"github.com/dashluu/numx/storage"
)

// Raw is a realized, packed host-order copy of an Array's values, produced
// by ToRaw. Exactly one of F32/I32/B8 is populated, matching DType.
type Raw struct {
	DType dtype.DType
	Shape []int
	F32   []float32
	I32   []int32
	B8    []bool
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Eval realizes a and every ancestor it depends on, attaching concrete
// Storage to each. It is a no-op on an already-realized node.
func (a *Array) Eval(ctx context.Context) error {
	return a.realize(ctx)
}

func (a *Array) realize(ctx context.Context) error {
	if a.storage != nil {
		return nil
	}

	if err := checkCtx(ctx); err != nil {
		return err
	}

	for _, in := range a.inputs {
		if err := in.realize(ctx); err != nil {
			return err
		}
	}

	if err := a.execute(); err != nil {
		return err
	}

	a.capturedVersion = a.storage.Version()

	if profile.Enabled() && !a.sharesStorageWithInput() {
		profile.Record(a.id, a.op.String(), a.Shape(), a.dtype.String(), int64(a.storage.Len()*a.dtype.Size()))
	}

	return nil
}

// sharesStorageWithInput reports whether a's storage is the same buffer as
// one of its inputs', i.e. a is a view op that never ran an allocating
// kernel.
func (a *Array) sharesStorageWithInput() bool {
	for _, in := range a.inputs {
		if in.storage == a.storage {
			return true
		}
	}

	return false
}

// Item realizes a and returns its single element. a must describe exactly
// one logical element.
func (a *Array) Item(ctx context.Context) (float64, error) {
	if a.view.Size() != 1 {
		return 0, fmt.Errorf("%w: shape %v has %d elements", ErrNotScalar, a.Shape(), a.view.Size())
	}

	if err := a.realize(ctx); err != nil {
		return 0, err
	}

	off, err := a.view.Index(make([]int, a.view.Dims())...)
	if err != nil {
		return 0, err
	}

	return a.storage.Float64At(off), nil
}

// ToRaw realizes a and gathers its elements, in row-major logical order,
// into a packed host buffer of the result dtype.
func (a *Array) ToRaw(ctx context.Context) (Raw, error) {
	if err := a.realize(ctx); err != nil {
		return Raw{}, err
	}

	n := a.view.Size()
	out := Raw{DType: a.dtype, Shape: a.Shape()}

	switch a.dtype {
	case dtype.F32:
		out.F32 = make([]float32, n)
	case dtype.I32:
		out.I32 = make([]int32, n)
	case dtype.B8:
		out.B8 = make([]bool, n)
	}

	forEachFlat(a.view.Shape(), func(flat int, idx []int) {
		off, _ := a.view.Index(idx...)
		v := a.storage.Float64At(off)

		switch a.dtype {
		case dtype.F32:
			out.F32[flat] = float32(v)
		case dtype.I32:
			out.I32[flat] = int32(v)
		case dtype.B8:
			out.B8[flat] = v != 0
		}
	})

	return out, nil
}

// forEachIndex calls fn once per multi-index of a tensor shaped sh, in
// row-major order (last axis fastest). fn must not retain idx past its
// call: the same backing slice is reused every iteration.
func forEachIndex(sh []int, fn func(idx []int)) {
	n := len(sh)
	idx := make([]int, n)
	size := shape.Product(sh)

	for c := 0; c < size; c++ {
		fn(idx)

		for d := n - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < sh[d] {
				break
			}

			idx[d] = 0
		}
	}
}

// forEachFlat is forEachIndex paired with a sequential output position,
// used by kernels writing into a fresh contiguous output buffer.
func forEachFlat(sh []int, fn func(flat int, idx []int)) {
	flat := 0
	forEachIndex(sh, func(idx []int) {
		fn(flat, idx)
		flat++
	})
}

func flatIndex(sh, idx []int) int {
	strides := shape.RowMajorStrides(sh)
	f := 0

	for i, v := range idx {
		f += v * strides[i]
	}

	return f
}

// writeTyped writes v into s at i, converting per dt. Integer targets
// truncate toward zero (Go's float64->int32 conversion does this
// natively); boolean targets are nonzero-to-true.
func writeTyped(s *storage.Storage, i int, v float64, dt dtype.DType) {
	switch dt {
	case dtype.F32:
		s.F32()[i] = float32(v)
	case dtype.I32:
		s.I32()[i] = int32(v)
	case dtype.B8:
		s.B8()[i] = v != 0
	}
}

func boolToF(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

func (a *Array) execute() error {
	switch a.op {
	case OpFromBuffer:
		return nil
	case OpFull:
		return execFull(a)
	case OpArange:
		return execArange(a)
	case OpRandom:
		return execRandom(a)
	case OpNeg, OpExp, OpLog, OpSqrt, OpSq, OpRecip:
		if a.params.InPlace {
			return execUnaryInPlace(a)
		}

		return execUnary(a)
	case OpCast:
		return execCast(a)
	case OpAdd, OpSub, OpMul, OpDiv, OpMaximum, OpMinimum, OpEq, OpLt, OpLe, OpGt, OpGe:
		if a.params.InPlace {
			return execBinaryInPlace(a)
		}

		return execBinary(a)
	case OpSum:
		return execReduceSum(a, false)
	case OpMean:
		return execReduceSum(a, true)
	case OpMax:
		return execReduceMaxMin(a, true)
	case OpMin:
		return execReduceMaxMin(a, false)
	case OpArgmax:
		return execArgReduce(a, true)
	case OpArgmin:
		return execArgReduce(a, false)
	case OpMatmul:
		return execMatmul(a)
	case OpPermute, OpReshape, OpSlice, OpExpand, OpFlatten, OpDetach:
		return shareStorage(a)
	case OpContiguous:
		return execContiguous(a)
	default:
		return fmt.Errorf("array: cannot realize op %v", a.op)
	}
}

func shareStorage(a *Array) error {
	in := a.inputs[0]
	in.storage.Retain()
	a.storage = in.storage

	return nil
}

func execFull(a *Array) error {
	out, err := storage.New(a.dtype, a.view.Size())
	if err != nil {
		return err
	}

	for i := 0; i < out.Len(); i++ {
		writeTyped(out, i, a.params.FullValue, a.dtype)
	}

	a.storage = out

	return nil
}

func execArange(a *Array) error {
	n := a.view.Size()

	out, err := storage.New(a.dtype, n)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		writeTyped(out, i, a.params.ArangeStart+float64(i)*a.params.ArangeStep, a.dtype)
	}

	a.storage = out

	return nil
}

func execRandom(a *Array) error {
	n := a.view.Size()

	out, err := storage.New(a.dtype, n)
	if err != nil {
		return err
	}

	r := rng.Stream(a.params.Seed)

	switch a.params.RandomKind {
	case RandomNormal:
		for i, v := range rng.Normal(r, n) {
			writeTyped(out, i, v, a.dtype)
		}
	case RandomUniform:
		for i, v := range rng.Uniform(r, a.params.RandomLow, a.params.RandomHigh, n) {
			writeTyped(out, i, v, a.dtype)
		}
	case RandomRandint:
		for i, v := range rng.Randint(r, int(a.params.RandomLow), int(a.params.RandomHigh), n) {
			out.I32()[i] = v
		}
	case RandomRandbool:
		for i, v := range rng.Randbool(r, n) {
			out.B8()[i] = v
		}
	}

	a.storage = out

	return nil
}

func unaryFunc(op Op) func(float64) float64 {
	switch op {
	case OpNeg:
		return func(x float64) float64 { return -x }
	case OpExp:
		return math.Exp
	case OpLog:
		return math.Log
	case OpSqrt:
		return math.Sqrt
	case OpSq:
		return func(x float64) float64 { return x * x }
	case OpRecip:
		return func(x float64) float64 { return 1 / x }
	default:
		return nil
	}
}

func execUnary(a *Array) error {
	in := a.inputs[0]
	f := unaryFunc(a.op)

	out, err := storage.New(a.dtype, a.view.Size())
	if err != nil {
		return err
	}

	forEachFlat(a.view.Shape(), func(flat int, idx []int) {
		off, _ := in.view.Index(idx...)
		writeTyped(out, flat, f(in.storage.Float64At(off)), a.dtype)
	})

	a.storage = out

	return nil
}

func execUnaryInPlace(a *Array) error {
	in := a.inputs[0]
	if !in.storage.Unique() || !in.view.IsContiguous() {
		return ErrInplaceConflict
	}

	f := unaryFunc(a.op)
	n := in.view.Size()

	for i := 0; i < n; i++ {
		writeTyped(in.storage, i, f(in.storage.Float64At(i)), in.storage.DType())
	}

	in.storage.Bump()
	in.storage.Retain()
	a.storage = in.storage

	return nil
}

func binaryFunc(op Op) func(float64, float64) float64 {
	switch op {
	case OpAdd:
		return func(p, q float64) float64 { return p + q }
	case OpSub:
		return func(p, q float64) float64 { return p - q }
	case OpMul:
		return func(p, q float64) float64 { return p * q }
	case OpDiv:
		return func(p, q float64) float64 { return p / q }
	case OpMaximum:
		return math.Max
	case OpMinimum:
		return math.Min
	case OpEq:
		return func(p, q float64) float64 { return boolToF(p == q) }
	case OpLt:
		return func(p, q float64) float64 { return boolToF(p < q) }
	case OpLe:
		return func(p, q float64) float64 { return boolToF(p <= q) }
	case OpGt:
		return func(p, q float64) float64 { return boolToF(p > q) }
	case OpGe:
		return func(p, q float64) float64 { return boolToF(p >= q) }
	default:
		return nil
	}
}

func execBinary(a *Array) error {
	x, y := a.inputs[0], a.inputs[1]
	f := binaryFunc(a.op)

	out, err := storage.New(a.dtype, a.view.Size())
	if err != nil {
		return err
	}

	forEachFlat(a.view.Shape(), func(flat int, idx []int) {
		xOff, _ := x.view.Index(idx...)
		yOff, _ := y.view.Index(idx...)
		writeTyped(out, flat, f(x.storage.Float64At(xOff), y.storage.Float64At(yOff)), a.dtype)
	})

	a.storage = out

	return nil
}

func execBinaryInPlace(a *Array) error {
	x, y := a.inputs[0], a.inputs[1]
	if !x.storage.Unique() || !x.view.IsContiguous() {
		return ErrInplaceConflict
	}

	f := binaryFunc(a.op)

	forEachFlat(x.view.Shape(), func(flat int, idx []int) {
		yOff, _ := y.view.Index(idx...)
		writeTyped(x.storage, flat, f(x.storage.Float64At(flat), y.storage.Float64At(yOff)), x.storage.DType())
	})

	x.storage.Bump()
	x.storage.Retain()
	a.storage = x.storage

	return nil
}

func execCast(a *Array) error {
	in := a.inputs[0]

	out, err := storage.New(a.dtype, a.view.Size())
	if err != nil {
		return err
	}

	forEachFlat(a.view.Shape(), func(flat int, idx []int) {
		off, _ := in.view.Index(idx...)
		writeTyped(out, flat, in.storage.Float64At(off), a.dtype)
	})

	a.storage = out

	return nil
}

func execContiguous(a *Array) error {
	in := a.inputs[0]

	out, err := storage.New(a.dtype, a.view.Size())
	if err != nil {
		return err
	}

	forEachFlat(a.view.Shape(), func(flat int, idx []int) {
		off, _ := in.view.Index(idx...)
		writeTyped(out, flat, in.storage.Float64At(off), a.dtype)
	})

	a.storage = out

	return nil
}

// reducedMask reports, per input axis, whether it is reduced. axes is
// assumed already-normalized (non-negative); empty means "reduce all".
func reducedMask(rank int, axes []int) []bool {
	mask := make([]bool, rank)

	if len(axes) == 0 {
		for i := range mask {
			mask[i] = true
		}

		return mask
	}

	for _, ax := range axes {
		mask[ax] = true
	}

	return mask
}

func outputIndexFromInput(idx []int, mask []bool) []int {
	out := make([]int, len(idx))

	for i, v := range idx {
		if !mask[i] {
			out[i] = v
		}
	}

	return out
}

func execReduceSum(a *Array, mean bool) error {
	in := a.inputs[0]
	mask := reducedMask(in.view.Dims(), a.params.Axes)
	outSh := a.view.Shape()
	outN := a.view.Size()
	acc := make([]float64, outN)
	count := make([]int, outN)

	forEachIndex(in.view.Shape(), func(idx []int) {
		of := flatIndex(outSh, outputIndexFromInput(idx, mask))
		off, _ := in.view.Index(idx...)
		acc[of] += in.storage.Float64At(off)
		count[of]++
	})

	out, err := storage.New(a.dtype, outN)
	if err != nil {
		return err
	}

	for i := 0; i < outN; i++ {
		v := acc[i]

		if mean {
			if count[i] == 0 {
				v = math.NaN()
			} else {
				v /= float64(count[i])
			}
		}

		writeTyped(out, i, v, a.dtype)
	}

	a.storage = out

	return nil
}

func execReduceMaxMin(a *Array, isMax bool) error {
	in := a.inputs[0]
	mask := reducedMask(in.view.Dims(), a.params.Axes)
	outSh := a.view.Shape()
	outN := a.view.Size()
	vals := make([]float64, outN)
	has := make([]bool, outN)

	forEachIndex(in.view.Shape(), func(idx []int) {
		of := flatIndex(outSh, outputIndexFromInput(idx, mask))
		off, _ := in.view.Index(idx...)
		v := in.storage.Float64At(off)

		switch {
		case !has[of]:
			vals[of], has[of] = v, true
		case isMax && v > vals[of]:
			vals[of] = v
		case !isMax && v < vals[of]:
			vals[of] = v
		}
	})

	for i := 0; i < outN; i++ {
		if !has[i] {
			return ErrEmptyReduce
		}
	}

	out, err := storage.New(a.dtype, outN)
	if err != nil {
		return err
	}

	for i, v := range vals {
		writeTyped(out, i, v, a.dtype)
	}

	a.storage = out

	return nil
}

// execArgReduce relies on forEachIndex visiting idx[axis] in strictly
// increasing order for any fixed combination of the other axes, which
// row-major enumeration guarantees; together with a strict improvement
// test below, that makes "first seen" and "smallest index" the same
// thing, giving the required tie-break for free.
func execArgReduce(a *Array, isMax bool) error {
	in := a.inputs[0]
	axis := a.params.Axes[0]
	mask := reducedMask(in.view.Dims(), a.params.Axes)
	outSh := a.view.Shape()
	outN := a.view.Size()
	best := make([]float64, outN)
	bestIdx := make([]int32, outN)
	has := make([]bool, outN)

	forEachIndex(in.view.Shape(), func(idx []int) {
		of := flatIndex(outSh, outputIndexFromInput(idx, mask))
		off, _ := in.view.Index(idx...)
		v := in.storage.Float64At(off)

		switch {
		case !has[of]:
			best[of], bestIdx[of], has[of] = v, int32(idx[axis]), true
		case isMax && v > best[of]:
			best[of], bestIdx[of] = v, int32(idx[axis])
		case !isMax && v < best[of]:
			best[of], bestIdx[of] = v, int32(idx[axis])
		}
	})

	for i := 0; i < outN; i++ {
		if !has[i] {
			return ErrEmptyReduce
		}
	}

	out, err := storage.New(dtype.I32, outN)
	if err != nil {
		return err
	}

	copy(out.I32(), bestIdx)
	a.storage = out

	return nil
}

func unflattenRowMajor(flat int, sh []int) []int {
	idx := make([]int, len(sh))

	for i := len(sh) - 1; i >= 0; i-- {
		if sh[i] == 0 {
			continue
		}

		idx[i] = flat % sh[i]
		flat /= sh[i]
	}

	return idx
}

func gatherF32(v shape.View, s *storage.Storage, batchIdx []int, rows, cols int) []float32 {
	out := make([]float32, rows*cols)
	idx := append(append([]int{}, batchIdx...), 0, 0)
	bi := len(idx) - 2

	for i := 0; i < rows; i++ {
		idx[bi] = i

		for j := 0; j < cols; j++ {
			idx[bi+1] = j
			off, _ := v.Index(idx...)
			out[i*cols+j] = float32(s.Float64At(off))
		}
	}

	return out
}

func gatherI32(v shape.View, s *storage.Storage, batchIdx []int, rows, cols int) []int32 {
	out := make([]int32, rows*cols)
	idx := append(append([]int{}, batchIdx...), 0, 0)
	bi := len(idx) - 2

	for i := 0; i < rows; i++ {
		idx[bi] = i

		for j := 0; j < cols; j++ {
			idx[bi+1] = j
			off, _ := v.Index(idx...)
			out[i*cols+j] = int32(s.Float64At(off))
		}
	}

	return out
}

func execMatmul(a *Array) error {
	x, y := a.inputs[0], a.inputs[1]
	outSh := a.view.Shape()
	rank := len(outSh)
	m, n := outSh[rank-2], outSh[rank-1]
	k := x.Shape()[x.view.Dims()-1]
	batchShape := outSh[:rank-2]
	batchSize := shape.Product(batchShape)

	out, err := storage.New(a.dtype, a.view.Size())
	if err != nil {
		return err
	}

	xFull, err := x.view.BroadcastTo(append(append([]int{}, batchShape...), m, k))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	yFull, err := y.view.BroadcastTo(append(append([]int{}, batchShape...), k, n))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	useBLAS := a.dtype == dtype.F32

	for b := 0; b < batchSize; b++ {
		batchIdx := unflattenRowMajor(b, batchShape)

		if useBLAS {
			am := gatherF32(xFull, x.storage, batchIdx, m, k)
			bm := gatherF32(yFull, y.storage, batchIdx, k, n)
			cm := make([]float32, m*n)
			xblas.GemmF32(m, n, k, am, bm, cm)
			copy(out.F32()[b*m*n:(b+1)*m*n], cm)
		} else {
			am := gatherI32(xFull, x.storage, batchIdx, m, k)
			bm := gatherI32(yFull, y.storage, batchIdx, k, n)
			cm := make([]int32, m*n)
			xblas.GemmI64(m, n, k, am, bm, cm)
			copy(out.I32()[b*m*n:(b+1)*m*n], cm)
		}
	}

	a.storage = out

	return nil
}
