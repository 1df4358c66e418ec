// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// A Backend wraps any tensor backend and records operations on a gradient
// tape while recording is enabled.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := backend.Mul(x, x)
//	grads := autodiff.Backward(y, backend)
//	_ = grads[x] // 2x
package autodiff

import (
	"github.com/born-ml/learner/internal/autodiff"
	"github.com/born-ml/learner/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// GradientTape records operations for backpropagation.
type GradientTape = autodiff.GradientTape

// BackwardCapable is implemented by backends that own a tape.
type BackwardCapable = autodiff.BackwardCapable

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// Backward computes the gradients of output with respect to every tensor
// recorded on the backend's tape.
func Backward(output *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(output, backend)
}
