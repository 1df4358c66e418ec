package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/learner/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization from the
// supplied source, so two layers built from the same seed are identical.
// Biases are initialized to zeros.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
	device      tensor.Device
}

// NewLinear creates a new Linear layer on the CPU.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	weight := NewParameter("weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng))
	bias := NewParameter("bias", Zeros(tensor.Shape{outFeatures}))

	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
		device:      tensor.CPU,
	}
}

// Forward computes x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear) Forward(backend tensor.Backend, input *tensor.RawTensor) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	output := backend.MatMul(input, backend.Transpose(l.weight.Tensor()))
	return backend.Add(output, l.bias.Tensor())
}

// Kind returns KindSingleAgent.
func (l *Linear) Kind() Kind { return KindSingleAgent }

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter { return l.weight }

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter { return l.bias }

// InFeatures returns the input width.
func (l *Linear) InFeatures() int { return l.inFeatures }

// OutFeatures returns the output width.
func (l *Linear) OutFeatures() int { return l.outFeatures }

// To moves the layer to device and empties its gradient slots.
func (l *Linear) To(device tensor.Device) error {
	moveParams(l.Parameters(), device)
	l.device = device
	return nil
}

// Device returns the layer's device.
func (l *Linear) Device() tensor.Device { return l.device }

// State exports weight and bias.
func (l *Linear) State() State {
	s := make(State, 2)
	paramState("", l.Parameters(), s)
	return s
}

// SetState overwrites weight and/or bias.
func (l *Linear) SetState(s State) error {
	return setParamState(l.Parameters(), s, l.device)
}
