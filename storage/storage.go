// Package storage implements the contiguous, reference-counted element
// buffers that realized Array nodes attach to. A Storage never resizes or
// reshapes itself; all shape/stride manipulation lives in the View a node
// layers on top of it.
package storage

import (
	"fmt"
	"sync/atomic"

	"github.com/dashluu/numx/dtype"
)

// Storage is a contiguous 1-D buffer of a single dtype, shared read-only
// by every View that addresses it except through an in-place op that has
// confirmed unique ownership. version is bumped on every in-place write so
// that a backward rule which captured a stale version can detect the
// conflict (see Version/Bump).
type Storage struct {
	dtype   dtype.DType
	f32Data []float32
	i32Data []int32
	b8Data  []bool

	refs    int32
	version int32
}

// NewF32 wraps data as F32 storage with refcount 1.
func NewF32(data []float32) *Storage {
	return &Storage{dtype: dtype.F32, f32Data: data, refs: 1}
}

// NewI32 wraps data as I32 storage with refcount 1.
func NewI32(data []int32) *Storage {
	return &Storage{dtype: dtype.I32, i32Data: data, refs: 1}
}

// NewB8 wraps data as B8 storage with refcount 1.
func NewB8(data []bool) *Storage {
	return &Storage{dtype: dtype.B8, b8Data: data, refs: 1}
}

// New allocates a zero-valued buffer of n elements of the given dtype.
func New(dt dtype.DType, n int) (*Storage, error) {
	switch dt {
	case dtype.F32:
		return NewF32(make([]float32, n)), nil
	case dtype.I32:
		return NewI32(make([]int32, n)), nil
	case dtype.B8:
		return NewB8(make([]bool, n)), nil
	default:
		return nil, fmt.Errorf("storage: unknown dtype %v", dt)
	}
}

// DType returns the storage's element kind.
func (s *Storage) DType() dtype.DType {
	return s.dtype
}

// Len returns the number of elements in the buffer.
func (s *Storage) Len() int {
	switch s.dtype {
	case dtype.F32:
		return len(s.f32Data)
	case dtype.I32:
		return len(s.i32Data)
	case dtype.B8:
		return len(s.b8Data)
	default:
		return 0
	}
}

// F32 returns the underlying float32 slice; panics if the storage is not F32.
func (s *Storage) F32() []float32 {
	if s.dtype != dtype.F32 {
		panic(fmt.Sprintf("storage: F32() called on %v storage", s.dtype))
	}

	return s.f32Data
}

// I32 returns the underlying int32 slice; panics if the storage is not I32.
func (s *Storage) I32() []int32 {
	if s.dtype != dtype.I32 {
		panic(fmt.Sprintf("storage: I32() called on %v storage", s.dtype))
	}

	return s.i32Data
}

// B8 returns the underlying bool slice; panics if the storage is not B8.
func (s *Storage) B8() []bool {
	if s.dtype != dtype.B8 {
		panic(fmt.Sprintf("storage: B8() called on %v storage", s.dtype))
	}

	return s.b8Data
}

// Retain increments the reference count. Call this whenever a new Array
// node starts addressing the same Storage without copying (Reshape,
// Permute, Slice, Unsqueeze, Detach, ...).
func (s *Storage) Retain() {
	atomic.AddInt32(&s.refs, 1)
}

// Release decrements the reference count. Call this when an Array that
// held a reference can no longer observe the storage (its node is
// replaced, e.g. by an in-place op's new binding).
func (s *Storage) Release() {
	atomic.AddInt32(&s.refs, -1)
}

// Unique reports whether this Storage currently has exactly one owner, the
// precondition for any in-place kernel write.
func (s *Storage) Unique() bool {
	return atomic.LoadInt32(&s.refs) == 1
}

// Version returns the current write-version counter.
func (s *Storage) Version() int32 {
	return atomic.LoadInt32(&s.version)
}

// Bump increments the write-version counter; called by every in-place
// kernel write.
func (s *Storage) Bump() {
	atomic.AddInt32(&s.version, 1)
}

// Float64At reads element i as a float64 regardless of the storage's dtype,
// promoting b8/i32 the same way arithmetic promotion would. Used by
// kernels that need to read heterogeneous operands uniformly.
func (s *Storage) Float64At(i int) float64 {
	switch s.dtype {
	case dtype.F32:
		return float64(s.f32Data[i])
	case dtype.I32:
		return float64(s.i32Data[i])
	case dtype.B8:
		if s.b8Data[i] {
			return 1
		}

		return 0
	default:
		return 0
	}
}
