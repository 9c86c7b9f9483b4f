package array

import (
	"fmt"

	"github.com/dashluu/numx/dtype"
	"github.com/dashluu/numx/rng"
	"github.com/dashluu/numx/shape"
	"github.com/dashluu/numx/storage"
)

// Opt is a functional option for leaf construction, mirroring the
// functional-options style the teacher uses for layer configuration
// (layers/core.DenseOpt).
type Opt func(*Array)

// RequiresGrad overrides the default requires_grad of a leaf (leaves
// default to false; everything else derives it from its inputs).
func RequiresGrad(v bool) Opt {
	return func(a *Array) { a.requiresGrad = v }
}

// Name attaches a debug name to a leaf.
func Name(name string) Opt {
	return func(a *Array) { a.name = name }
}

func applyOpts(a *Array, opts []Opt) *Array {
	for _, opt := range opts {
		opt(a)
	}

	return a
}

func newLeaf(op Op, params Params, v shape.View, dt dtype.DType, opts []Opt) *Array {
	a := newNode(op, nil, params, v, dt)

	return applyOpts(a, opts)
}

// FromRaw builds a leaf Array directly over an existing, already-realized
// Storage. shape must describe exactly storage.Len() elements.
func FromRaw(s *storage.Storage, sh []int, opts ...Opt) (*Array, error) {
	v, err := viewOrScalar(sh)
	if err != nil {
		return nil, err
	}

	if v.Size() != s.Len() {
		return nil, fmt.Errorf("%w: storage has %d elements, shape %v wants %d", ErrShapeMismatch, s.Len(), sh, v.Size())
	}

	a := newLeaf(OpFromBuffer, Params{}, v, s.DType(), opts)
	a.storage = s
	a.capturedVersion = s.Version()

	return a, nil
}

// FromFloat32 builds an F32 leaf from host data.
func FromFloat32(sh []int, data []float32, opts ...Opt) (*Array, error) {
	return FromRaw(storage.NewF32(data), sh, opts...)
}

// FromInt32 builds an I32 leaf from host data.
func FromInt32(sh []int, data []int32, opts ...Opt) (*Array, error) {
	return FromRaw(storage.NewI32(data), sh, opts...)
}

// FromBool builds a B8 leaf from host data.
func FromBool(sh []int, data []bool, opts ...Opt) (*Array, error) {
	return FromRaw(storage.NewB8(data), sh, opts...)
}

// Full builds a leaf of shape sh where every element equals value, realized
// lazily (the buffer is not allocated until the node is evaluated).
func Full(sh []int, value float64, dt dtype.DType, opts ...Opt) (*Array, error) {
	v, err := viewOrScalar(sh)
	if err != nil {
		return nil, err
	}

	return newLeaf(OpFull, Params{FullValue: value}, v, dt, opts), nil
}

// Zeros builds a leaf of shape sh filled with the dtype's zero value.
func Zeros(sh []int, dt dtype.DType, opts ...Opt) (*Array, error) {
	return Full(sh, 0, dt, opts...)
}

// Ones builds a leaf of shape sh filled with the dtype's one value.
func Ones(sh []int, dt dtype.DType, opts ...Opt) (*Array, error) {
	return Full(sh, 1, dt, opts...)
}

// ZerosLike builds a Zeros leaf with the same shape and dtype as a.
func ZerosLike(a *Array, opts ...Opt) (*Array, error) {
	return Zeros(a.Shape(), a.dtype, opts...)
}

// OnesLike builds an Ones leaf with the same shape and dtype as a.
func OnesLike(a *Array, opts ...Opt) (*Array, error) {
	return Ones(a.Shape(), a.dtype, opts...)
}

// Arange builds a 1-D leaf [start, start+step, start+2*step, ...] of
// length n; n must be positive.
func Arange(n int, start, step float64, dt dtype.DType, opts ...Opt) (*Array, error) {
	v, err := shape.New([]int{n})
	if err != nil {
		return nil, err
	}

	return newLeaf(OpArange, Params{ArangeStart: start, ArangeStep: step}, v, dt, opts), nil
}

// Normal builds a leaf of shape sh drawn from the standard normal
// distribution, using the process-wide PRNG stream (rng.Seed/rng.Next).
func Normal(sh []int, opts ...Opt) (*Array, error) {
	return randomLeaf(sh, RandomNormal, 0, 0, dtype.F32, opts)
}

// Uniform builds a leaf of shape sh drawn uniformly from [low, high).
func Uniform(sh []int, low, high float64, opts ...Opt) (*Array, error) {
	return randomLeaf(sh, RandomUniform, low, high, dtype.F32, opts)
}

// Randint builds an I32 leaf of shape sh drawn uniformly from the
// half-open integer range [low, high).
func Randint(sh []int, low, high int, opts ...Opt) (*Array, error) {
	return randomLeaf(sh, RandomRandint, float64(low), float64(high), dtype.I32, opts)
}

// Randbool builds a B8 leaf of shape sh, each element an independent fair
// coin flip.
func Randbool(sh []int, opts ...Opt) (*Array, error) {
	return randomLeaf(sh, RandomRandbool, 0, 0, dtype.B8, opts)
}

func randomLeaf(sh []int, kind RandomKind, low, high float64, dt dtype.DType, opts []Opt) (*Array, error) {
	v, err := viewOrScalar(sh)
	if err != nil {
		return nil, err
	}

	params := Params{RandomKind: kind, RandomLow: low, RandomHigh: high, Seed: rng.NextSeed()}

	return newLeaf(OpRandom, params, v, dt, opts), nil
}

// viewOrScalar builds a View from sh, treating an empty shape as a valid
// 0-dimensional scalar view (per spec.md §3, "Shape").
func viewOrScalar(sh []int) (shape.View, error) {
	if len(sh) == 0 {
		return shape.View{}, nil
	}

	return shape.New(sh)
}
