package learner

import (
	"github.com/born-ml/learner/internal/device"
	"github.com/born-ml/learner/internal/optim"
)

// LossKeyTotal is the loss entry gradients are computed from.
const LossKeyTotal = "total"

// Config holds the learner settings.
type Config struct {
	// UseAccelerator places modules on an accelerator instead of the CPU.
	UseAccelerator bool
	// Distributed enables data-parallel wrapping and gradient averaging.
	Distributed bool
	// LocalAcceleratorIndex selects the accelerator when not distributed.
	LocalAcceleratorIndex int

	// Optimizer is the default optimizer kind. Empty means Adam.
	Optimizer optim.Kind
	// OptimizerConfig holds the optimizer hyperparameters. "lr" is required.
	OptimizerConfig map[string]float64
}

// DefaultConfig returns a CPU, single-process configuration using Adam
// with a learning rate of 1e-3.
func DefaultConfig() Config {
	return Config{
		Optimizer:       optim.KindAdam,
		OptimizerConfig: map[string]float64{optim.KeyLR: 1e-3},
	}
}

func (c Config) placement() device.Config {
	return device.Config{
		UseAccelerator:        c.UseAccelerator,
		Distributed:           c.Distributed,
		LocalAcceleratorIndex: c.LocalAcceleratorIndex,
	}
}
