package ops

import (
	"testing"

	"github.com/born-ml/learner/internal/backend/cpu"
	"github.com/born-ml/learner/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestReduceBroadcast(t *testing.T) {
	grad := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	t.Run("leading dims", func(t *testing.T) {
		r := reduceBroadcast(grad, tensor.Shape{3})
		assert.Equal(t, []float32{5, 7, 9}, r.Data())
	})

	t.Run("size one dim", func(t *testing.T) {
		r := reduceBroadcast(grad, tensor.Shape{2, 1})
		assert.Equal(t, []float32{6, 15}, r.Data())
	})

	t.Run("scalar", func(t *testing.T) {
		r := reduceBroadcast(grad, tensor.Shape{})
		assert.InDelta(t, 21, r.Item(), 1e-6)
	})

	t.Run("same shape clones", func(t *testing.T) {
		r := reduceBroadcast(grad, tensor.Shape{2, 3})
		assert.Equal(t, grad.Data(), r.Data())
		assert.NotSame(t, grad, r)
	})
}

func TestMulOp_Backward(t *testing.T) {
	backend := cpu.New()
	a := raw(t, []float32{2, 3}, tensor.Shape{2})
	b := raw(t, []float32{4, 5}, tensor.Shape{2})
	out := backend.Mul(a, b)
	op := NewMulOp(a, b, out)

	grads := op.Backward(raw(t, []float32{1, 1}, tensor.Shape{2}), backend)
	assert.Equal(t, []float32{4, 5}, grads[0].Data())
	assert.Equal(t, []float32{2, 3}, grads[1].Data())
}

func TestMatMulOp_Backward(t *testing.T) {
	backend := cpu.New()
	a := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := raw(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})
	op := NewMatMulOp(a, b, backend.MatMul(a, b))

	ones := raw(t, []float32{1, 1, 1, 1}, tensor.Shape{2, 2})
	grads := op.Backward(ones, backend)

	// grad_a = ones @ b^T, grad_b = a^T @ ones
	assert.Equal(t, []float32{11, 15, 11, 15}, grads[0].Data())
	assert.Equal(t, []float32{4, 4, 6, 6}, grads[1].Data())
}

func TestMeanOp_Backward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{4})
	op := NewMeanOp(x, backend.Mean(x))

	grads := op.Backward(tensor.Scalar(1, tensor.CPU), backend)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, grads[0].Data())
}

func TestSubOp_BackwardBroadcast(t *testing.T) {
	backend := cpu.New()
	a := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := raw(t, []float32{1, 1}, tensor.Shape{2})
	op := NewSubOp(a, b, backend.Sub(a, b))

	grads := op.Backward(raw(t, []float32{1, 1, 1, 1}, tensor.Shape{2, 2}), backend)
	assert.Equal(t, []float32{1, 1, 1, 1}, grads[0].Data())
	assert.Equal(t, []float32{-2, -2}, grads[1].Data())
}
