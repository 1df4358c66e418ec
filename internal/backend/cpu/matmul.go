package cpu

import (
	"fmt"

	"github.com/born-ml/learner/internal/parallel"
	"github.com/born-ml/learner/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N). Rows of the output are
// distributed across the backend's worker pool.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	sameDevice("matmul", a, b)
	aShape, bShape := a.Shape(), b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := newResult("matmul", tensor.Shape{m, n}, a.Device())
	matmulFloat32(result.Data(), a.Data(), b.Data(), m, k, n, cpu.par)
	return result
}

// matmulFloat32 computes C[i,j] = sum_k A[i,k] * B[k,j] using the i-k-j loop
// order for sequential access to B and C.
func matmulFloat32(c, a, b []float32, m, k, n int, cfg parallel.Config) {
	parallel.ForRange(m, func(start, end int) {
		for i := start; i < end; i++ {
			row := c[i*n : (i+1)*n]
			for p := 0; p < k; p++ {
				aik := a[i*k+p]
				if aik == 0 {
					continue
				}
				bRow := b[p*n : (p+1)*n]
				for j := range row {
					row[j] += aik * bRow[j]
				}
			}
		}
	}, cfg)
}
