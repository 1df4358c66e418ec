package autodiff

import (
	"testing"

	"github.com/born-ml/learner/internal/backend/cpu"
	"github.com/born-ml/learner/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend() *AutodiffBackend[*cpu.CPUBackend] {
	return New(cpu.New())
}

func raw(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestAutodiff_Square(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x := raw(t, []float32{3}, tensor.Shape{1})
	y := backend.Sum(backend.Mul(x, x))

	grads := Backward(y, backend)
	require.Contains(t, grads, x)
	assert.InDelta(t, 6, grads[x].Data()[0], 1e-6)
}

func TestAutodiff_NotRecording(t *testing.T) {
	backend := newBackend()
	x := raw(t, []float32{1, 2}, tensor.Shape{2})
	backend.Mul(x, x)
	assert.Equal(t, 0, backend.Tape().NumOps())
}

func TestAutodiff_LinearMSE(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	// y = x @ w + b, loss = mean((y - target)^2)
	x := raw(t, []float32{1, 2}, tensor.Shape{2, 1})
	w := raw(t, []float32{0.5}, tensor.Shape{1, 1})
	b := raw(t, []float32{0}, tensor.Shape{1})
	target := raw(t, []float32{1, 1}, tensor.Shape{2, 1})

	y := backend.Add(backend.MatMul(x, w), b)
	diff := backend.Sub(y, target)
	loss := backend.Mean(backend.Mul(diff, diff))

	// diff = [-0.5, 0]; dL/dy = diff; dL/dw = sum(x*diff) = -0.5; dL/db = -0.5
	assert.InDelta(t, 0.125, loss.Item(), 1e-6)
	grads := Backward(loss, backend)
	assert.InDelta(t, -0.5, grads[w].Data()[0], 1e-6)
	assert.InDelta(t, -0.5, grads[b].Data()[0], 1e-6)
}

func TestAutodiff_BackwardIsRepeatable(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x := raw(t, []float32{2, -1}, tensor.Shape{2})
	loss := backend.Sum(backend.MulScalar(backend.Mul(x, x), 0.5))

	first := Backward(loss, backend)
	second := Backward(loss, backend)
	assert.Equal(t, first[x].Data(), second[x].Data())
	assert.Equal(t, []float32{2, -1}, second[x].Data())
}

func TestAutodiff_SeedNotLastOp(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x := raw(t, []float32{4}, tensor.Shape{1})
	loss := backend.Sum(backend.MulScalar(x, 3))
	backend.MulScalar(x, 100) // recorded after the loss, contributes nothing

	grads := Backward(loss, backend)
	assert.InDelta(t, 3, grads[x].Data()[0], 1e-6)
}

func TestGradientTape_Clear(t *testing.T) {
	tape := NewGradientTape()
	backend := New(cpu.New())
	backend.tape = tape
	tape.StartRecording()

	x := raw(t, []float32{1}, tensor.Shape{1})
	backend.Add(x, x)
	assert.Equal(t, 1, tape.NumOps())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording())
	assert.Empty(t, tape.Backward(x, backend.Inner()))
}
