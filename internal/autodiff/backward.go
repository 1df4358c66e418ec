package autodiff

import (
	"github.com/born-ml/learner/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
	// GradBackend returns the backend gradient arithmetic runs on.
	GradBackend() tensor.Backend
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// GradBackend returns the wrapped backend.
func (b *AutodiffBackend[B]) GradBackend() tensor.Backend {
	return b.inner
}

// Backward computes gradients of output using the backend's tape.
//
// Returns a map from RawTensor to its gradient. Tensors that did not
// contribute to output are absent from the map.
func Backward(output *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	return backend.GetTape().BackwardFrom(output, backend.GradBackend())
}
