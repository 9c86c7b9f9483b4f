// Package array implements the lazy computation graph described by
// spec.md: Array nodes carrying an Op, operand references, a View and a
// DType, realized on demand into concrete Storage, with a reverse-mode
// autograd tape layered on top. It is grounded on the node/graph/engine
// split in github.com/zerfoo/zerfoo's graph, compute and tensor packages,
// collapsed into one package because the Array type's own Eval/Backward
// methods and the realizer/tape that implement them are mutually
// recursive — keeping them in one package avoids an import cycle that
// splitting the teacher's three packages apart here would otherwise force.
package array

import (
	"fmt"
	"sync/atomic"

	"github.com/dashluu/numx/dtype"
	"github.com/dashluu/numx/shape"
	"github.com/dashluu/numx/storage"
)

// Op is a tagged enum identifying a primitive operation. Each Array node
// carries exactly one Op plus whatever operand Arrays and intrinsic
// parameters that Op needs.
type Op int

// The exhaustive set of primitive ops, per spec.md §4.3.
const (
	OpFromBuffer Op = iota
	OpFull
	OpArange
	OpRandom

	OpNeg
	OpExp
	OpLog
	OpSqrt
	OpSq
	OpRecip
	OpCast

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMaximum
	OpMinimum
	OpEq
	OpLt
	OpLe
	OpGt
	OpGe

	OpSum
	OpMean
	OpMax
	OpMin
	OpArgmax
	OpArgmin

	OpMatmul

	OpPermute
	OpReshape
	OpSlice
	OpExpand
	OpFlatten

	OpDetach
	OpContiguous
)

// opNames gives each Op a short, stable label for diagnostics and profiling.
var opNames = map[Op]string{
	OpFromBuffer: "from_buffer",
	OpFull:       "full",
	OpArange:     "arange",
	OpRandom:     "random",

	OpNeg:   "neg",
	OpExp:   "exp",
	OpLog:   "log",
	OpSqrt:  "sqrt",
	OpSq:    "sq",
	OpRecip: "recip",
	OpCast:  "cast",

	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpDiv:     "div",
	OpMaximum: "maximum",
	OpMinimum: "minimum",
	OpEq:      "eq",
	OpLt:      "lt",
	OpLe:      "le",
	OpGt:      "gt",
	OpGe:      "ge",

	OpSum:    "sum",
	OpMean:   "mean",
	OpMax:    "max",
	OpMin:    "min",
	OpArgmax: "argmax",
	OpArgmin: "argmin",

	OpMatmul: "matmul",

	OpPermute: "permute",
	OpReshape: "reshape",
	OpSlice:   "slice",
	OpExpand:  "expand",
	OpFlatten: "flatten",

	OpDetach:     "detach",
	OpContiguous: "contiguous",
}

// String implements fmt.Stringer.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}

	return fmt.Sprintf("op(%d)", int(op))
}

// RandomKind selects the distribution a Random leaf draws from.
type RandomKind int

// The supported random distributions (spec.md §4.5 "Random").
const (
	RandomNormal RandomKind = iota
	RandomUniform
	RandomRandint
	RandomRandbool
)

// Params holds the union of intrinsic, op-specific parameters an Array's
// Op may carry. Only the fields relevant to Op are populated; this plays
// the role of the per-variant payload in a tagged union.
type Params struct {
	Axes       []int // reduction axes (nil means "all axes"), or a permutation
	KeepDim    bool  // reductions always keep-dim per spec; field kept explicit for clarity at call sites
	SliceSpecs []shape.SliceSpec
	FlattenLo  int
	FlattenHi  int

	FullValue float64

	RandomKind RandomKind
	RandomLow  float64
	RandomHigh float64
	Seed       int64

	CastTo dtype.DType

	ArangeStart float64
	ArangeStep  float64

	InPlace bool
}

// Array is a node in the lazy computation DAG. It describes a value
// without necessarily holding one: storage is nil until the node (or an
// ancestor requesting it) is realized.
type Array struct {
	id           int64
	op           Op
	inputs       []*Array
	params       Params
	view         shape.View
	dtype        dtype.DType
	storage      *storage.Storage
	requiresGrad bool
	grad         *Array
	isLeaf       bool
	name         string

	// capturedVersion is the storage.Version() this node observed the last time it
	// was realized; used to detect InplaceConflict during backward.
	capturedVersion int32
}

var nextID int64

func newID() int64 {
	return atomic.AddInt64(&nextID, 1)
}

// ID returns the node's stable, monotonically increasing identity, used as
// a map key in gradient accumulation.
func (a *Array) ID() int64 { return a.id }

// Op returns the node's primitive operation tag.
func (a *Array) Op() Op { return a.op }

// Inputs returns the node's operand Arrays.
func (a *Array) Inputs() []*Array { return a.inputs }

// Params returns the node's intrinsic, op-specific parameters.
func (a *Array) Params() Params { return a.params }

// View returns the node's declared shape/strides/offset.
func (a *Array) View() shape.View { return a.view }

// Shape returns the node's shape.
func (a *Array) Shape() []int { return a.view.Shape() }

// DType returns the node's element kind.
func (a *Array) DType() dtype.DType { return a.dtype }

// IsLeaf reports whether the node is a FromBuffer/Full/Arange/Random leaf.
func (a *Array) IsLeaf() bool { return a.isLeaf }

// RequiresGrad reports whether this node participates in autograd.
func (a *Array) RequiresGrad() bool { return a.requiresGrad }

// Grad returns the accumulated gradient Array after Backward, or nil.
func (a *Array) Grad() *Array { return a.grad }

// ClearGrad discards the accumulated gradient, e.g. between optimizer steps.
func (a *Array) ClearGrad() { a.grad = nil }

// Name returns the node's debug name, set at leaf construction.
func (a *Array) Name() string { return a.name }

// Storage returns the node's materialized buffer, or nil if unrealized.
func (a *Array) Storage() *storage.Storage { return a.storage }

// newNode builds an Array with a fresh id, inferring requiresGrad from its
// inputs (any input requiring grad makes the result require grad too).
func newNode(op Op, inputs []*Array, params Params, v shape.View, dt dtype.DType) *Array {
	rg := false

	for _, in := range inputs {
		if in.requiresGrad {
			rg = true

			break
		}
	}

	return &Array{
		id:     newID(),
		op:     op,
		inputs: inputs,
		params: params,
		view:   v,
		dtype:  dt,

		requiresGrad: rg,
		isLeaf:       len(inputs) == 0,
	}
}
