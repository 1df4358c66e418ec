package nn

import (
	"sync/atomic"

	"github.com/born-ml/learner/internal/tensor"
)

// ParamRef identifies a parameter for its whole lifetime. It is assigned at
// creation, never reused within a process, and usable as a map key.
type ParamRef uint64

var nextParamRef atomic.Uint64

// Parameter represents a trainable parameter in a neural network.
//
// The gradient slot is either empty (nil) or holds a tensor of the same
// shape as the parameter. Emptying the slot is distinct from storing zeros:
// an empty slot means "no update".
type Parameter struct {
	name   string            // Parameter name (e.g., "weight", "bias")
	ref    ParamRef          // Stable identity
	tensor *tensor.RawTensor // The parameter tensor
	grad   *tensor.RawTensor // Gradient, nil when empty
}

// NewParameter creates a new trainable parameter with a fresh ParamRef.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		ref:    ParamRef(nextParamRef.Add(1)),
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Ref returns the parameter's stable reference.
func (p *Parameter) Ref() ParamRef {
	return p.ref
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Shape returns the parameter shape.
func (p *Parameter) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Grad returns the gradient tensor, or nil if the slot is empty.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad stores grad in the gradient slot. A nil grad empties the slot.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad empties the gradient slot.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
