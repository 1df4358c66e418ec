package ops

import (
	"fmt"

	"github.com/born-ml/learner/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone on equal shapes so callers never alias a shared gradient.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	result, err := tensor.NewRaw(targetShape, grad.Device())
	if err != nil {
		panic(fmt.Sprintf("reduceBroadcast: failed to create result: %v", err))
	}

	// Map every gradient index onto the target, skipping broadcast axes.
	targetStrides := targetShape.ComputeStrides()
	gradStrides := gradShape.ComputeStrides()
	offset := len(gradShape) - len(targetShape)
	if offset < 0 {
		panic(fmt.Sprintf("reduceBroadcast: target %s has more dims than gradient %s", targetShape, gradShape))
	}

	out, in := result.Data(), grad.Data()
	for i, v := range in {
		ti, rem := 0, i
		for d, s := range gradStrides {
			idx := rem / s
			rem %= s
			j := d - offset
			if j < 0 || targetShape[j] == 1 {
				continue
			}
			ti += idx * targetStrides[j]
		}
		out[ti] += v
	}
	return result
}
