package ops

import (
	"fmt"

	"github.com/born-ml/learner/internal/tensor"
)

// SumOp represents a full reduction: output = sum(x).
// Every input element receives the (scalar) output gradient.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: x, output: output}
}

// Backward broadcasts the scalar gradient back to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandScalar(outputGrad, op.input, 1)}
}

// Inputs returns [x].
func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns sum(x).
func (op *SumOp) Output() *tensor.RawTensor { return op.output }

// MeanOp represents a full reduction: output = mean(x).
// Every input element receives outputGrad / N.
type MeanOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewMeanOp creates a new MeanOp.
func NewMeanOp(x, output *tensor.RawTensor) *MeanOp {
	return &MeanOp{input: x, output: output}
}

// Backward broadcasts outputGrad / N back to the input shape.
func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	scale := 1 / float32(op.input.NumElements())
	return []*tensor.RawTensor{expandScalar(outputGrad, op.input, scale)}
}

// Inputs returns [x].
func (op *MeanOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns mean(x).
func (op *MeanOp) Output() *tensor.RawTensor { return op.output }

// expandScalar fills a tensor shaped like like with grad * scale.
func expandScalar(grad, like *tensor.RawTensor, scale float32) *tensor.RawTensor {
	result, err := tensor.Full(like.Shape(), grad.Item()*scale, like.Device())
	if err != nil {
		panic(fmt.Sprintf("expand: failed to create result: %v", err))
	}
	return result
}
