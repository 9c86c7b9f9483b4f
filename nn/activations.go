package nn

import "github.com/dashluu/numx/array"

// ReLU computes max(x, 0) elementwise.
type ReLU struct{ NoParameters }

// NewReLU builds a ReLU layer.
func NewReLU() *ReLU { return &ReLU{} }

// Forward returns max(x, 0).
func (r *ReLU) Forward(x *array.Array) (*array.Array, error) {
	zero, err := array.Zeros(nil, x.DType())
	if err != nil {
		return nil, err
	}

	return x.Maximum(zero)
}

// Softmax normalizes x to a probability distribution along Axis, via the
// numerically stable exp(x-max)/sum(exp(x-max)) form. Differentiating
// through the max-subtraction is exact, not an approximation: the two
// formulations compute the identical function of x, so their gradients
// agree by the chain rule.
type Softmax struct {
	NoParameters

	Axis int
}

// NewSoftmax builds a Softmax layer reducing along axis.
func NewSoftmax(axis int) *Softmax { return &Softmax{Axis: axis} }

// Forward returns softmax(x) along s.Axis.
func (s *Softmax) Forward(x *array.Array) (*array.Array, error) {
	mx, err := x.Max(s.Axis)
	if err != nil {
		return nil, err
	}

	shifted, err := x.Sub(mx)
	if err != nil {
		return nil, err
	}

	expShifted := shifted.Exp()

	sumExp, err := expShifted.Sum(s.Axis)
	if err != nil {
		return nil, err
	}

	return expShifted.Div(sumExp)
}
