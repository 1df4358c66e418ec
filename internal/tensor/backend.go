package tensor

// Backend defines the operations a compute backend must provide to the
// learner core. Backends handle the actual computation; the autodiff
// decorator records these same operations on its tape.
//
// Binary element-wise operations follow NumPy broadcasting. All operands of
// one call must live on the same device; results are placed on that device.
//
// Implementations:
//   - cpu.CPUBackend: pure Go reference engine
//   - autodiff.AutodiffBackend: gradient-recording decorator over any Backend
type Backend interface {
	// Element-wise binary operations
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MulScalar multiplies every element by s.
	MulScalar(x *RawTensor, s float32) *RawTensor

	// MatMul multiplies 2-D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Transpose swaps the two axes of a 2-D tensor.
	Transpose(x *RawTensor) *RawTensor

	// Reductions to a 0-D tensor.
	Sum(x *RawTensor) *RawTensor
	Mean(x *RawTensor) *RawTensor

	// Metadata
	Name() string
}
