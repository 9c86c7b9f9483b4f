package array

import "errors"

// Sentinel errors surfaced synchronously from the call that triggers them,
// per spec.md §7.
var (
	// ErrShapeMismatch covers broadcast failures, matmul inner-dimension
	// mismatches, reshape size mismatches, and ranks too low for matmul.
	ErrShapeMismatch = errors.New("array: shape mismatch")
	// ErrDTypeMismatch is returned when an op does not accept the given
	// dtype combination.
	ErrDTypeMismatch = errors.New("array: dtype mismatch")
	// ErrAxisOutOfRange is returned for a normalized axis outside [-r, r).
	ErrAxisOutOfRange = errors.New("array: axis out of range")
	// ErrNotScalar is returned by Item on a non-scalar array. Backward
	// does not return it: a non-scalar root is always summed first.
	ErrNotScalar = errors.New("array: not a scalar")
	// ErrEmptyReduce is returned by Max/Min over an empty set of elements.
	ErrEmptyReduce = errors.New("array: reduction over empty axis set")
	// ErrInplaceConflict is returned when an in-place op targets storage
	// that is not uniquely owned, not contiguous, or has been mutated
	// since a backward rule captured its version.
	ErrInplaceConflict = errors.New("array: in-place conflict")
)
