// Package optim implements parameter-update rules over nn.Parameter
// slices, driven by the gradients array.Array.Backward populates.
package optim

import (
	"context"
	"log/slog"

	"github.com/dashluu/numx/array"
	"github.com/dashluu/numx/nn"
)

// GradientDescent is plain SGD: p' = p - lr*grad.
type GradientDescent struct {
	lr float64
}

// NewGradientDescent builds a GradientDescent optimizer with the given
// learning rate.
func NewGradientDescent(lr float64) *GradientDescent {
	return &GradientDescent{lr: lr}
}

// Step updates every parameter with a gradient and rebinds p.Value to a
// fresh leaf carrying the result, so the next forward pass starts from
// concrete storage rather than an ever-growing lazy graph reaching back
// through every prior step. A parameter with no gradient (never touched
// by the loss) is skipped and logged, not treated as an error. The update
// rebinds rather than writing in place since a parameter's storage is
// commonly shared by view ops (e.g. Linear's weight transpose) built
// during the forward pass that just ran, which would make it ineligible
// for the engine's exclusive-ownership in-place path.
func (g *GradientDescent) Step(ctx context.Context, params []*nn.Parameter) error {
	for _, p := range params {
		grad := p.Grad()
		if grad == nil {
			slog.Warn("optim: parameter has no gradient, skipping", "parameter", p.Name)

			continue
		}

		scaled, err := scaleBy(grad, -g.lr)
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

func scaleBy(a *array.Array, factor float64) (*array.Array, error) {
	f, err := array.Full(nil, factor, a.DType())
	if err != nil {
		return nil, err
	}

	return a.Mul(f)
}
