package array

import (
	"context"
	"fmt"

	"github.com/dashluu/numx/dtype"
	"github.com/dashluu/numx/shape"
	"github.com/dashluu/numx/storage"
)

// Backward runs reverse-mode autodiff from a. a must realize to a single
// element; a wider result is implicitly summed first. Populates Grad() on
// every differentiable ancestor. A root with no differentiable ancestor
// is a silent no-op, not an error.
func (a *Array) Backward(ctx context.Context) error {
	if err := a.realize(ctx); err != nil {
		return err
	}

	if a.view.Size() != 1 {
		summed, err := a.Sum()
		if err != nil {
			return err
		}

		return summed.Backward(ctx)
	}

	if !a.requiresGrad {
		return nil
	}

	order := topoOrder(a)
	grads := map[int64]*Array{}

	one, err := OnesLike(a)
	if err != nil {
		return err
	}

	grads[a.id] = one

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]

		g := grads[node.id]
		if g == nil {
			continue
		}

		if err := g.Eval(ctx); err != nil {
			return err
		}

		node.grad = g

		if node.isLeaf {
			continue
		}

		if node.storage.Version() != node.capturedVersion {
			return ErrInplaceConflict
		}

		contribs, err := backwardRule(node, g)
		if err != nil {
			return err
		}

		for idx, in := range node.inputs {
			if !in.requiresGrad {
				continue
			}

			c := contribs[idx]
			if c == nil {
				continue
			}

			if existing, ok := grads[in.id]; ok {
				sum, serr := existing.Add(c)
				if serr != nil {
					return serr
				}

				grads[in.id] = sum
			} else {
				grads[in.id] = c
			}
		}
	}

	return nil
}

// topoOrder returns root's ancestors requiring grad, inputs before
// outputs, pruning any subtree rooted at a node that does not require
// grad (Detach included, since a Detach node's requiresGrad is forced
// false at construction).
func topoOrder(root *Array) []*Array {
	visited := make(map[int64]bool)

	var order []*Array

	var visit func(n *Array)

	visit = func(n *Array) {
		if visited[n.id] || !n.requiresGrad {
			return
		}

		visited[n.id] = true

		for _, in := range n.inputs {
			visit(in)
		}

		order = append(order, n)
	}

	visit(root)

	return order
}

func scalarConst(dt dtype.DType, v float64) (*Array, error) {
	return Full(nil, v, dt)
}

func invertPermutation(axes []int) []int {
	inv := make([]int, len(axes))
	for i, ax := range axes {
		inv[ax] = i
	}

	return inv
}

// reduceToShape sum-reduces g down to target, undoing a broadcast: extra
// leading axes are summed away entirely, and any axis target holds at
// size 1 that g holds wider is summed back to size 1. Used for both
// Expand's backward rule and Matmul's batch-broadcast gradient reduction.
func reduceToShape(g *Array, target []int) (*Array, error) {
	gShape := g.Shape()
	if shape.Equal(gShape, target) {
		return g, nil
	}

	rank, trank := len(gShape), len(target)
	pad := rank - trank

	var axes []int

	for i := 0; i < pad; i++ {
		axes = append(axes, i)
	}

	for i := pad; i < rank; i++ {
		if target[i-pad] == 1 && gShape[i] != 1 {
			axes = append(axes, i)
		}
	}

	summed, err := g.Sum(axes...)
	if err != nil {
		return nil, err
	}

	return summed.Reshape(summed.Shape()[pad:])
}

func tieBreakLeftBackward(g, a, b *Array, isMax bool) ([]*Array, error) {
	var maskA, maskB *Array

	var err error

	if isMax {
		maskA, err = a.Ge(b)
	} else {
		maskA, err = a.Le(b)
	}

	if err != nil {
		return nil, err
	}

	if isMax {
		maskB, err = a.Lt(b)
	} else {
		maskB, err = a.Gt(b)
	}

	if err != nil {
		return nil, err
	}

	ga, err := g.Mul(maskA.Astype(a.dtype))
	if err != nil {
		return nil, err
	}

	gb, err := g.Mul(maskB.Astype(b.dtype))
	if err != nil {
		return nil, err
	}

	return []*Array{ga, gb}, nil
}

// scatterReduceBackward implements the Max/Min backward rule by building
// an equality mask against the broadcast reduction result. Ties scatter
// the gradient to every tied position (the common convention), distinct
// from Argmax/Argmin's single-index tie-break, which only applies to
// those ops' own (non-differentiable) output.
func scatterReduceBackward(node, g, in *Array) ([]*Array, error) {
	inSh := in.Shape()

	nodeExpanded, err := node.Expand(inSh)
	if err != nil {
		return nil, err
	}

	maskEq, err := in.Eq(nodeExpanded)
	if err != nil {
		return nil, err
	}

	gExpanded, err := g.Expand(inSh)
	if err != nil {
		return nil, err
	}

	gi, err := gExpanded.Mul(maskEq.Astype(in.dtype))
	if err != nil {
		return nil, err
	}

	return []*Array{gi}, nil
}

func matmulBackward(node, g *Array) ([]*Array, error) {
	a, b := node.inputs[0], node.inputs[1]

	bt, err := b.Transpose(-2, -1)
	if err != nil {
		return nil, err
	}

	gA, err := g.Matmul(bt)
	if err != nil {
		return nil, err
	}

	gA, err = reduceToShape(gA, a.Shape())
	if err != nil {
		return nil, err
	}

	at, err := a.Transpose(-2, -1)
	if err != nil {
		return nil, err
	}

	gB, err := at.Matmul(g)
	if err != nil {
		return nil, err
	}

	gB, err = reduceToShape(gB, b.Shape())
	if err != nil {
		return nil, err
	}

	return []*Array{gA, gB}, nil
}

// sliceBackward scatters g into a zero buffer shaped like the sliced
// input, at the positions the forward slice read from. g is already
// realized by the time Backward calls this.
func sliceBackward(node, g *Array) (*Array, error) {
	in := node.inputs[0]

	zeros, err := storage.New(in.dtype, shape.Product(in.Shape()))
	if err != nil {
		return nil, err
	}

	targetView := contiguousView(in.Shape())

	sliceView, err := targetView.Slice(node.params.SliceSpecs)
	if err != nil {
		return nil, err
	}

	forEachFlat(g.view.Shape(), func(flat int, idx []int) {
		_ = flat

		gOff, _ := g.view.Index(idx...)
		val := g.storage.Float64At(gOff)
		tOff, _ := sliceView.Index(idx...)
		writeTyped(zeros, tOff, val, in.dtype)
	})

	return FromRaw(zeros, in.Shape())
}

// backwardRule computes one gradient contribution per input of node,
// given g = the gradient already accumulated at node's output. A nil
// entry means no contribution (a non-differentiable input).
func backwardRule(node *Array, g *Array) ([]*Array, error) {
	switch node.op {
	case OpAdd:
		return []*Array{g, g}, nil
	case OpSub:
		return []*Array{g, g.Neg()}, nil
	case OpMul:
		a, b := node.inputs[0], node.inputs[1]

		ga, err := g.Mul(b)
		if err != nil {
			return nil, err
		}

		gb, err := g.Mul(a)
		if err != nil {
			return nil, err
		}

		return []*Array{ga, gb}, nil
	case OpDiv:
		a, b := node.inputs[0], node.inputs[1]

		ga, err := g.Div(b)
		if err != nil {
			return nil, err
		}

		t, err := g.Mul(a)
		if err != nil {
			return nil, err
		}

		gb, err := t.Neg().Div(b.Sq())
		if err != nil {
			return nil, err
		}

		return []*Array{ga, gb}, nil
	case OpNeg:
		return []*Array{g.Neg()}, nil
	case OpExp:
		ga, err := g.Mul(node)
		if err != nil {
			return nil, err
		}

		return []*Array{ga}, nil
	case OpLog:
		ga, err := g.Div(node.inputs[0])
		if err != nil {
			return nil, err
		}

		return []*Array{ga}, nil
	case OpSqrt:
		two, err := scalarConst(node.dtype, 2)
		if err != nil {
			return nil, err
		}

		denom, err := node.Mul(two)
		if err != nil {
			return nil, err
		}

		ga, err := g.Div(denom)
		if err != nil {
			return nil, err
		}

		return []*Array{ga}, nil
	case OpSq:
		two, err := scalarConst(node.dtype, 2)
		if err != nil {
			return nil, err
		}

		t, err := g.Mul(two)
		if err != nil {
			return nil, err
		}

		ga, err := t.Mul(node.inputs[0])
		if err != nil {
			return nil, err
		}

		return []*Array{ga}, nil
	case OpRecip:
		a := node.inputs[0]

		ga, err := g.Neg().Div(a.Sq())
		if err != nil {
			return nil, err
		}

		return []*Array{ga}, nil
	case OpMaximum:
		return tieBreakLeftBackward(g, node.inputs[0], node.inputs[1], true)
	case OpMinimum:
		return tieBreakLeftBackward(g, node.inputs[0], node.inputs[1], false)
	case OpSum:
		gi, err := g.Expand(node.inputs[0].Shape())
		if err != nil {
			return nil, err
		}

		return []*Array{gi}, nil
	case OpMean:
		in := node.inputs[0]
		inSh := in.Shape()
		axes := node.params.Axes
		count := 1

		if len(axes) == 0 {
			count = shape.Product(inSh)
		} else {
			for _, ax := range axes {
				count *= inSh[ax]
			}
		}

		gi, err := g.Expand(inSh)
		if err != nil {
			return nil, err
		}

		scale, err := scalarConst(dtype.F32, 1.0/float64(count))
		if err != nil {
			return nil, err
		}

		gi, err = gi.Mul(scale)
		if err != nil {
			return nil, err
		}

		return []*Array{gi}, nil
	case OpMax, OpMin:
		return scatterReduceBackward(node, g, node.inputs[0])
	case OpMatmul:
		return matmulBackward(node, g)
	case OpPermute:
		gi, err := g.Permute(invertPermutation(node.params.Axes))
		if err != nil {
			return nil, err
		}

		return []*Array{gi}, nil
	case OpReshape, OpFlatten:
		gi, err := g.Reshape(node.inputs[0].Shape())
		if err != nil {
			return nil, err
		}

		return []*Array{gi}, nil
	case OpSlice:
		gi, err := sliceBackward(node, g)
		if err != nil {
			return nil, err
		}

		return []*Array{gi}, nil
	case OpExpand:
		gi, err := reduceToShape(g, node.inputs[0].Shape())
		if err != nil {
			return nil, err
		}

		return []*Array{gi}, nil
	case OpContiguous:
		return []*Array{g}, nil
	case OpCast:
		return []*Array{g.Astype(node.inputs[0].dtype)}, nil
	case OpArgmax, OpArgmin, OpEq, OpLt, OpLe, OpGt, OpGe:
		return make([]*Array, len(node.inputs)), nil
	default:
		return nil, fmt.Errorf("array: no backward rule for op %v", node.op)
	}
}
