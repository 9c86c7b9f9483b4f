package optim

import (
	"context"
	"log/slog"

	"github.com/dashluu/numx/array"
	"github.com/dashluu/numx/nn"
)

// Momentum is SGD with a velocity term: v = momentum*v + grad;
// p' = p - lr*v. A supplement to plain gradient descent.
type Momentum struct {
	lr       float64
	momentum float64
	velocity map[*nn.Parameter]*array.Array
}

// NewMomentum builds a Momentum optimizer with the given learning rate
// and momentum coefficient.
func NewMomentum(lr, momentum float64) *Momentum {
	return &Momentum{lr: lr, momentum: momentum, velocity: make(map[*nn.Parameter]*array.Array)}
}

// Step updates every parameter with a gradient, tracking one velocity
// buffer per *nn.Parameter across calls. A parameter with no gradient is
// skipped and logged.
func (m *Momentum) Step(ctx context.Context, params []*nn.Parameter) error {
	for _, p := range params {
		grad := p.Grad()
		if grad == nil {
			slog.Warn("optim: parameter has no gradient, skipping", "parameter", p.Name)

			continue
		}

		v, ok := m.velocity[p]
		if !ok {
			zeros, err := array.ZerosLike(grad)
			if err != nil {
				return err
			}

			v = zeros
		}

		scaledV, err := scaleBy(v, m.momentum)
		if err != nil {
			return err
		}

		newV, err := scaledV.Add(grad)
		if err != nil {
			return err
		}

		if err := newV.Eval(ctx); err != nil {
			return err
		}

		vLeaf, err := array.FromRaw(newV.Storage(), newV.Shape())
		if err != nil {
			return err
		}

		m.velocity[p] = vLeaf

		scaled, err := scaleBy(vLeaf, -m.lr)
		if err != nil {
			return err
		}

		updated, err := p.Value.Add(scaled)
		if err != nil {
			return err
		}

		if err := updated.Eval(ctx); err != nil {
			return err
		}

		leaf, err := array.FromRaw(updated.Storage(), updated.Shape(), array.RequiresGrad(true), array.Name(p.Name))
		if err != nil {
			return err
		}

		p.Value = leaf
	}

	return nil
}
