package shape

import "fmt"

// Broadcast computes the shape that results from broadcasting a and b
// together: shapes are aligned on their trailing axes, and for each
// aligned pair (x, y) one of x == y, x == 1, or y == 1 must hold. Missing
// leading dimensions are treated as size 1.
func Broadcast(a, b []int) ([]int, error) {
	na, nb := len(a), len(b)

	n := na
	if nb > n {
		n = nb
	}

	out := make([]int, n)

	for i := 1; i <= n; i++ {
		da, db := 1, 1
		if i <= na {
			da = a[na-i]
		}

		if i <= nb {
			db = b[nb-i]
		}

		switch {
		case da == db:
			out[n-i] = da
		case da == 1:
			out[n-i] = db
		case db == 1:
			out[n-i] = da
		default:
			return nil, fmt.Errorf("shape: cannot broadcast %v with %v (axis %d: %d vs %d)", a, b, n-i, da, db)
		}
	}

	return out, nil
}

// BroadcastTo returns a view of v expanded to target, a shape Broadcast(v.Shape(), target)
// would have produced. New leading axes get a stride of 0; any axis whose
// original size was 1 and whose target size is larger also gets a stride
// of 0. No data is copied or touched.
func (v View) BroadcastTo(target []int) (View, error) {
	rank := len(target)
	if rank < len(v.shape) {
		return View{}, fmt.Errorf("shape: cannot broadcast shape %v to smaller rank %v", v.shape, target)
	}

	newShape := cloneInts(target)
	newStrides := make([]int, rank)
	pad := rank - len(v.shape)

	for i := 0; i < rank; i++ {
		if i < pad {
			newStrides[i] = 0

			continue
		}

		srcDim := v.shape[i-pad]
		srcStride := v.strides[i-pad]

		switch {
		case srcDim == target[i]:
			newStrides[i] = srcStride
		case srcDim == 1:
			newStrides[i] = 0
		default:
			return View{}, fmt.Errorf("shape: cannot broadcast axis of size %d to %d", srcDim, target[i])
		}
	}

	return View{shape: newShape, strides: newStrides, offset: v.offset}, nil
}
