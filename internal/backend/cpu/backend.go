// Package cpu implements the pure Go reference backend.
//
// Tensors placed on an accelerator device are executed from host memory by
// this backend; the device tag is preserved so placement and migration
// semantics stay observable without an accelerator runtime.
package cpu

import (
	"fmt"

	"github.com/born-ml/learner/internal/parallel"
	"github.com/born-ml/learner/internal/tensor"
)

// CPUBackend implements tensor operations on the host CPU.
type CPUBackend struct {
	par parallel.Config
}

// New creates a new CPU backend sized from the detected core count.
func New() *CPUBackend {
	return &CPUBackend{par: parallel.DefaultConfig()}
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{par: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// sameDevice panics if a and b live on different devices.
func sameDevice(op string, a, b *tensor.RawTensor) {
	if a.Device() != b.Device() {
		panic(fmt.Sprintf("%s: operands on different devices: %s and %s", op, a.Device(), b.Device()))
	}
}

// newResult allocates an output tensor, panicking on invalid shapes.
func newResult(op string, shape tensor.Shape, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}
