package nn

import (
	"github.com/dashluu/numx/array"
	"github.com/dashluu/numx/dtype"
)

// oneHot expands targets (an I32 array of class indices, any shape) into a
// boolean array one axis wider, comparing each index against 0..vocabSize-1.
func oneHot(targets *array.Array, vocabSize int) (*array.Array, error) {
	classes, err := array.Arange(vocabSize, 0, 1, dtype.I32)
	if err != nil {
		return nil, err
	}

	expanded, err := targets.Unsqueeze(-1)
	if err != nil {
		return nil, err
	}

	return expanded.Eq(classes)
}

// CrossEntropyLoss computes the mean cross-entropy between logits
// (..., vocabSize) and targets (...) (I32 class indices), via the
// log-sum-exp form: mean(logsumexp(logits) - logits[target]).
func CrossEntropyLoss(logits, targets *array.Array) (*array.Array, error) {
	axis := -1

	mx, err := logits.Max(axis)
	if err != nil {
		return nil, err
	}

	shifted, err := logits.Sub(mx)
	if err != nil {
		return nil, err
	}

	expShifted := shifted.Exp()

	sumExp, err := expShifted.Sum(axis)
	if err != nil {
		return nil, err
	}

	logSumExp := sumExp.Log()

	lse, err := logSumExp.Add(mx)
	if err != nil {
		return nil, err
	}

	vocabSize := logits.Shape()[len(logits.Shape())-1]

	oh, err := oneHot(targets, vocabSize)
	if err != nil {
		return nil, err
	}

	picked, err := logits.Mul(oh.Astype(logits.DType()))
	if err != nil {
		return nil, err
	}

	pickedSum, err := picked.Sum(axis)
	if err != nil {
		return nil, err
	}

	perExample, err := lse.Sub(pickedSum)
	if err != nil {
		return nil, err
	}

	return perExample.Mean()
}
