package nn

import (
	"fmt"

	"github.com/born-ml/learner/internal/tensor"
)

// MSE computes the mean squared error mean((predictions - targets)²).
// Returns a 0-D tensor.
func MSE(backend tensor.Backend, predictions, targets *tensor.RawTensor) *tensor.RawTensor {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSE: predictions %v and targets %v must have the same shape", predictions.Shape(), targets.Shape()))
	}
	diff := backend.Sub(predictions, targets)
	return backend.Mean(backend.Mul(diff, diff))
}

// SumSquares computes sum(x²), the quadratic objective used to drive a
// parameter towards zero.
func SumSquares(backend tensor.Backend, x *tensor.RawTensor) *tensor.RawTensor {
	return backend.Sum(backend.Mul(x, x))
}
