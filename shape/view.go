// Package shape implements the View (shape/strides/offset) algebra that
// keeps reshape, permute, transpose, slice and broadcast allocation-free
// whenever the underlying data layout allows it.
package shape

import "fmt"

// View describes how a logical n-dimensional index maps onto a flat
// storage buffer: shape gives the extent of each axis, strides gives the
// number of elements (not bytes) to advance per unit step along that axis,
// and offset is the flat index of the view's first element.
type View struct {
	shape   []int
	strides []int
	offset  int
}

// New builds a contiguous, row-major View over shape starting at offset 0.
// A 0-dimensional shape describes a scalar view over a 1-element buffer.
func New(shape []int) (View, error) {
	for _, d := range shape {
		if d <= 0 {
			return View{}, fmt.Errorf("shape: dimension %d must be positive, got %d", d, d)
		}
	}

	return View{shape: cloneInts(shape), strides: RowMajorStrides(shape), offset: 0}, nil
}

// RowMajorStrides computes the strides of a contiguous, row-major layout
// for shape.
func RowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1

	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	return strides
}

// Shape returns a copy of the view's shape.
func (v View) Shape() []int {
	return cloneInts(v.shape)
}

// Strides returns a copy of the view's strides.
func (v View) Strides() []int {
	return cloneInts(v.strides)
}

// Offset returns the view's flat offset into its storage.
func (v View) Offset() int {
	return v.offset
}

// Dims returns the number of axes in the view.
func (v View) Dims() int {
	return len(v.shape)
}

// Size returns the number of logical elements the view addresses
// (the product of its shape; 1 for a 0-dimensional/scalar view).
func (v View) Size() int {
	size := 1
	for _, d := range v.shape {
		size *= d
	}

	return size
}

// IsContiguous reports whether v maps its shape via row-major strides with
// a zero offset, i.e. whether it addresses a packed run of storage.
func (v View) IsContiguous() bool {
	if v.offset != 0 {
		return false
	}

	want := RowMajorStrides(v.shape)
	for i := range want {
		if v.strides[i] != want[i] {
			return false
		}
	}

	return true
}

// Bounds returns the minimum and maximum flat indices v can address. A view
// is valid against a buffer of n elements iff 0 <= min and max < n.
func (v View) Bounds() (min, max int) {
	min, max = v.offset, v.offset

	for i, d := range v.shape {
		if d == 0 {
			continue
		}

		step := v.strides[i] * (d - 1)
		if step > 0 {
			max += step
		} else {
			min += step
		}
	}

	return min, max
}

// ValidFor reports whether every index the view can produce falls inside a
// buffer of n elements.
func (v View) ValidFor(n int) bool {
	min, max := v.Bounds()

	return min >= 0 && max < n
}

// Index computes the flat storage offset for a full set of per-axis
// indices.
func (v View) Index(indices ...int) (int, error) {
	if len(indices) != len(v.shape) {
		return 0, fmt.Errorf("shape: expected %d indices, got %d", len(v.shape), len(indices))
	}

	off := v.offset

	for i, idx := range indices {
		if idx < 0 || idx >= v.shape[i] {
			return 0, fmt.Errorf("shape: index %d out of bounds for axis %d with size %d", idx, i, v.shape[i])
		}

		off += idx * v.strides[i]
	}

	return off, nil
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)

	return out
}

// NormalizeAxis maps a possibly-negative axis into [0, rank).
func NormalizeAxis(axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}

	if axis < 0 || axis >= rank {
		return 0, fmt.Errorf("shape: axis out of range [-%d, %d)", rank, rank)
	}

	return axis, nil
}

// Product returns the product of the given dimensions.
func Product(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}

	return p
}

// Equal reports whether two shapes describe the same extents.
func Equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
