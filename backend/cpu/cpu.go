// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Matrix multiplication is split across goroutines sized from the CPU
// topology; elementwise operations support NumPy-style broadcasting.
//
//	backend := cpu.New()
//	y := backend.MatMul(x, w)
package cpu

import (
	internalcpu "github.com/born-ml/learner/internal/backend/cpu"
	"github.com/born-ml/learner/internal/parallel"
	"github.com/born-ml/learner/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// ParallelConfig controls goroutine fan-out.
type ParallelConfig = parallel.Config

// New creates a CPU backend with the default parallel configuration.
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with cfg.
func NewWithConfig(cfg ParallelConfig) *Backend {
	return internalcpu.NewWithConfig(cfg)
}
