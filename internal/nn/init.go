package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/learner/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t, err := tensor.NewRaw(shape, tensor.CPU)
	if err != nil {
		panic(err)
	}

	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Zeros creates a zero-filled tensor on the CPU.
func Zeros(shape tensor.Shape) *tensor.RawTensor {
	t, err := tensor.NewRaw(shape, tensor.CPU)
	if err != nil {
		panic(err)
	}
	return t
}
