package cpu

import (
	"fmt"

	"github.com/born-ml/learner/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	result := newResult("mul_scalar", x.Shape(), x.Device())
	out, in := result.Data(), x.Data()
	for i, v := range in {
		out[i] = v * s
	}
	return result
}

// Transpose swaps the axes of a 2-D tensor.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: only 2D tensors supported, got %dD", len(shape)))
	}
	rows, cols := shape[0], shape[1]
	result := newResult("transpose", tensor.Shape{cols, rows}, x.Device())
	out, in := result.Data(), x.Data()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = in[i*cols+j]
		}
	}
	return result
}

// Sum reduces all elements to a 0-D tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	var sum float32
	for _, v := range x.Data() {
		sum += v
	}
	return tensor.Scalar(sum, x.Device())
}

// Mean reduces all elements to their arithmetic mean as a 0-D tensor.
func (cpu *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	s := cpu.Sum(x)
	s.Data()[0] /= float32(x.NumElements())
	return s
}

// binary applies f element-wise over the broadcast of a and b.
func binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	sameDevice(op, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := newResult(op, outShape, a.Device())
	out, ad, bd := result.Data(), a.Data(), b.Data()

	if !needsBroadcast {
		for i := range out {
			out[i] = f(ad[i], bd[i])
		}
		return result
	}

	aStrides := BroadcastStrides(a.Shape(), outShape)
	bStrides := BroadcastStrides(b.Shape(), outShape)
	outStrides := outShape.ComputeStrides()

	for i := range out {
		ai, bi, rem := 0, 0, i
		for d, s := range outStrides {
			idx := rem / s
			rem %= s
			ai += idx * aStrides[d]
			bi += idx * bStrides[d]
		}
		out[i] = f(ad[ai], bd[bi])
	}
	return result
}

// BroadcastStrides returns strides that map an index in outShape back into
// a tensor of shape src, with zero strides on broadcast dimensions.
func BroadcastStrides(src, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	srcStrides := src.ComputeStrides()
	offset := len(outShape) - len(src)
	for d := range outShape {
		j := d - offset
		if j < 0 || src[j] == 1 {
			continue
		}
		strides[d] = srcStrides[j]
	}
	return strides
}
