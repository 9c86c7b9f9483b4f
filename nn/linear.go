package nn

import (
	"fmt"
	"math"

	"github.com/dashluu/numx/array"
)

// linearOptions configures NewLinear.
type linearOptions struct {
	bias bool
}

// LinearOpt is a functional option for NewLinear.
type LinearOpt func(*linearOptions)

// WithoutBias disables the Linear layer's bias term.
func WithoutBias() LinearOpt {
	return func(o *linearOptions) { o.bias = false }
}

// Linear performs output = input . weightT + bias. Weight has shape
// (outFeatures, inFeatures); bias has shape (outFeatures,).
type Linear struct {
	name   string
	Weight *Parameter
	Bias   *Parameter // nil when constructed WithoutBias
}

// NewLinear builds a Linear layer with weight and bias drawn uniformly
// from (-1/sqrt(inFeatures), 1/sqrt(inFeatures)).
func NewLinear(name string, inFeatures, outFeatures int, opts ...LinearOpt) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("nn: Linear %q requires positive feature counts, got in=%d out=%d", name, inFeatures, outFeatures)
	}

	options := linearOptions{bias: true}
	for _, opt := range opts {
		opt(&options)
	}

	bound := 1.0 / math.Sqrt(float64(inFeatures))

	w, err := array.Uniform([]int{outFeatures, inFeatures}, -bound, bound, array.RequiresGrad(true), array.Name(name+"_weight"))
	if err != nil {
		return nil, fmt.Errorf("nn: Linear %q weight init: %w", name, err)
	}

	l := &Linear{
		name:   name,
		Weight: &Parameter{Name: name + "_weight", Value: w},
	}

	if options.bias {
		b, berr := array.Uniform([]int{outFeatures}, -bound, bound, array.RequiresGrad(true), array.Name(name+"_bias"))
		if berr != nil {
			return nil, fmt.Errorf("nn: Linear %q bias init: %w", name, berr)
		}

		l.Bias = &Parameter{Name: name + "_bias", Value: b}
	}

	return l, nil
}

// Forward computes x . weightT (+ bias).
func (l *Linear) Forward(x *array.Array) (*array.Array, error) {
	wt, err := l.Weight.Value.Transpose(-2, -1)
	if err != nil {
		return nil, err
	}

	y, err := x.Matmul(wt)
	if err != nil {
		return nil, err
	}

	if l.Bias == nil {
		return y, nil
	}

	return y.Add(l.Bias.Value)
}

// Parameters returns the weight, and the bias when present.
func (l *Linear) Parameters() []*Parameter {
	if l.Bias == nil {
		return []*Parameter{l.Weight}
	}

	return []*Parameter{l.Weight, l.Bias}
}

// Name returns the layer's configured name.
func (l *Linear) Name() string { return l.name }
