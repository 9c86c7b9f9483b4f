package nn

import "github.com/dashluu/numx/array"

// Sequential chains Layers, feeding each one's output to the next.
type Sequential struct {
	name   string
	Layers []Layer
}

// NewSequential builds a Sequential from layers, run in order.
func NewSequential(name string, layers ...Layer) *Sequential {
	return &Sequential{name: name, Layers: layers}
}

// Forward runs x through every layer in order.
func (s *Sequential) Forward(x *array.Array) (*array.Array, error) {
	var err error

	for _, l := range s.Layers {
		x, err = l.Forward(x)
		if err != nil {
			return nil, err
		}
	}

	return x, nil
}

// Parameters returns every child layer's parameters, in layer order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter

	for _, l := range s.Layers {
		params = append(params, l.Parameters()...)
	}

	return params
}

// Name returns the model's configured name.
func (s *Sequential) Name() string { return s.name }
