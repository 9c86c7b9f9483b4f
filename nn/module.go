// Package nn builds trainable models out of array.Array graphs: Module
// wraps a set of Parameters, Layer adds a Forward pass, and Sequential
// composes Layers into a pipeline. Gradients are never computed here —
// they fall out of array.Array.Backward once a loss is built from a
// Layer's output.
package nn

import "github.com/dashluu/numx/array"

// Parameter names a trainable leaf Array so optimizers and checkpoints can
// address it by a stable key.
type Parameter struct {
	Name  string
	Value *array.Array
}

// Grad returns the parameter's accumulated gradient after Backward, or nil.
func (p *Parameter) Grad() *array.Array { return p.Value.Grad() }

// Module reports its trainable parameters. Every implementation applies
// the same rule: return its own parameters plus every child's, recursively
// — there is no opt-out, since an omitted parameter silently never trains.
type Module interface {
	Parameters() []*Parameter
}

// Layer is a Module that also computes a forward pass.
type Layer interface {
	Module
	Forward(x *array.Array) (*array.Array, error)
}

// NoParameters is embedded by layers that own no trainable state.
type NoParameters struct{}

// Parameters returns nil: the layer owns nothing to train.
func (NoParameters) Parameters() []*Parameter { return nil }
