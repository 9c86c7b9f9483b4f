package shape

import "fmt"

// Permute reorders the view's axes according to axes, a permutation of
// {0, ..., rank-1}. Negative entries count from the end.
func (v View) Permute(axes []int) (View, error) {
	rank := v.Dims()
	if len(axes) != rank {
		return View{}, fmt.Errorf("shape: permute expects %d axes, got %d", rank, len(axes))
	}

	seen := make([]bool, rank)
	newShape := make([]int, rank)
	newStrides := make([]int, rank)

	for i, ax := range axes {
		na, err := NormalizeAxis(ax, rank)
		if err != nil {
			return View{}, fmt.Errorf("shape: permute: %w", err)
		}

		if seen[na] {
			return View{}, fmt.Errorf("shape: permute axes %v is not a permutation", axes)
		}

		seen[na] = true
		newShape[i] = v.shape[na]
		newStrides[i] = v.strides[na]
	}

	return View{shape: newShape, strides: newStrides, offset: v.offset}, nil
}

// Transpose reverses the order of axes in the closed interval
// [min(i,j), max(i,j)]. This matches the tinygrad-derived source this
// engine was modeled on: it is a multi-axis reversal, not a pairwise swap.
func (v View) Transpose(i, j int) (View, error) {
	rank := v.Dims()

	ni, err := NormalizeAxis(i, rank)
	if err != nil {
		return View{}, fmt.Errorf("shape: transpose: %w", err)
	}

	nj, err := NormalizeAxis(j, rank)
	if err != nil {
		return View{}, fmt.Errorf("shape: transpose: %w", err)
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

	return v.Permute(axes)
}

// Reshape returns a view of newShape with the same total element count. If
// v is contiguous, the new strides are computed directly with no copy
// needed; callers with a non-contiguous view must realize to a contiguous
// buffer first (this function only computes the resulting view; it never
// touches storage).
func (v View) Reshape(newShape []int) (View, error) {
	if Product(newShape) != v.Size() {
		return View{}, fmt.Errorf("shape: cannot reshape size %d into shape %v (size %d)", v.Size(), newShape, Product(newShape))
	}

	if !v.IsContiguous() {
		return View{}, fmt.Errorf("shape: reshape requires a contiguous view; realize first")
	}

	return View{shape: cloneInts(newShape), strides: RowMajorStrides(newShape), offset: 0}, nil
}

// Flatten collapses the axes in [start, end] (negative indices allowed)
// into a single axis of size equal to their product.
func (v View) Flatten(start, end int) (View, error) {
	rank := v.Dims()

	ns, err := NormalizeAxis(start, rank)
	if err != nil {
		return View{}, fmt.Errorf("shape: flatten: %w", err)
	}

	ne, err := NormalizeAxis(end, rank)
	if err != nil {
		return View{}, fmt.Errorf("shape: flatten: %w", err)
	}

	if ns > ne {
		return View{}, fmt.Errorf("shape: flatten start %d is after end %d", ns, ne)
	}

	newShape := make([]int, 0, rank-(ne-ns))
	newShape = append(newShape, v.shape[:ns]...)
	newShape = append(newShape, Product(v.shape[ns:ne+1]))
	newShape = append(newShape, v.shape[ne+1:]...)

	return v.Reshape(newShape)
}

// Unsqueeze inserts a size-1 axis at axis (default -1, meaning append at
// the end). The inserted axis gets the stride that preserves the existing
// element mapping.
func (v View) Unsqueeze(axis int) (View, error) {
	rank := v.Dims()

	at := axis
	if at < 0 {
		at += rank + 1
	}

	if at < 0 || at > rank {
		return View{}, fmt.Errorf("shape: unsqueeze axis out of range [-%d, %d]", rank+1, rank)
	}

	newShape := make([]int, 0, rank+1)
	newShape = append(newShape, v.shape[:at]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, v.shape[at:]...)

	newStrides := make([]int, 0, rank+1)
	newStrides = append(newStrides, v.strides[:at]...)

	stride := 0
	switch {
	case at < rank:
		stride = v.strides[at]
	case rank > 0:
		stride = v.strides[rank-1] * v.shape[rank-1]
	default:
		stride = 1
	}

	newStrides = append(newStrides, stride)
	newStrides = append(newStrides, v.strides[at:]...)

	return View{shape: newShape, strides: newStrides, offset: v.offset}, nil
}
