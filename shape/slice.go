package shape

import "fmt"

// SliceSpec describes a single axis of a Slice operation, mirroring
// Python's `start:stop:step` syntax. Start and Stop are nil when omitted
// (meaning "from the beginning"/"to the end", direction-dependent on the
// sign of Step). Step must be non-zero; a zero Step defaults to 1 via
// NewSliceSpec.
type SliceSpec struct {
	Start *int
	Stop  *int
	Step  int
}

// NewSliceSpec builds a SliceSpec, defaulting Step to 1 when given 0.
func NewSliceSpec(start, stop *int, step int) SliceSpec {
	if step == 0 {
		step = 1
	}

	return SliceSpec{Start: start, Stop: stop, Step: step}
}

// Slice returns a view over the per-axis ranges described by specs.
// len(specs) may be less than the view's rank; trailing axes not named by
// specs pass through unchanged. Negative start/stop values count from the
// end of their axis; negative steps reverse the traversal direction. The
// resulting size is ceil((stop-start)/step) with sign handled per the
// direction of step; zero-size slices are legal.
func (v View) Slice(specs []SliceSpec) (View, error) {
	rank := v.Dims()
	if len(specs) > rank {
		return View{}, fmt.Errorf("shape: slice has %d specs for a rank-%d view", len(specs), rank)
	}

	newShape := cloneInts(v.shape)
	newStrides := cloneInts(v.strides)
	offset := v.offset

	for axis, spec := range specs {
		n := v.shape[axis]

		step := spec.Step
		if step == 0 {
			return View{}, fmt.Errorf("shape: slice step cannot be 0 on axis %d", axis)
		}

		start, stop, err := normalizeRange(spec, n)
		if err != nil {
			return View{}, fmt.Errorf("shape: slice axis %d: %w", axis, err)
		}

		var size int

		switch {
		case step > 0 && stop > start:
			size = (stop - start + step - 1) / step
		case step < 0 && start > stop:
			size = (start - stop - step - 1) / (-step)
		default:
			size = 0
		}

		offset += start * v.strides[axis]
		newStrides[axis] = v.strides[axis] * step
		newShape[axis] = size
	}

	return View{shape: newShape, strides: newStrides, offset: offset}, nil
}

// normalizeRange resolves a spec's start/stop against an axis of size n,
// following Python's slicing convention for negative indices and implicit
// bounds.
func normalizeRange(spec SliceSpec, n int) (start, stop int, err error) {
	step := spec.Step

	if step > 0 {
		start = 0
		if spec.Start != nil {
			start = clampRange(normalizeIndex(*spec.Start, n), 0, n)
		}

		stop = n
		if spec.Stop != nil {
			stop = clampRange(normalizeIndex(*spec.Stop, n), 0, n)
		}

		return start, stop, nil
	}

	start = n - 1
	if spec.Start != nil {
		start = clampRange(normalizeIndex(*spec.Start, n), -1, n-1)
	}

	stop = -1
	if spec.Stop != nil {
		stop = clampRange(normalizeIndex(*spec.Stop, n), -1, n-1)
	}

	return start, stop, nil
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		return i + n
	}

	return i
}

func clampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
