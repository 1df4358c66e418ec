// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the module types trained by the learner.
//
// Modules expose a closed set of kinds: leaf modules (Linear, Value) and
// Composite, which groups children by id. Every module can move to a
// device and export or import its state in device-independent form.
//
//	spec := nn.LinearSpec{InFeatures: 4, OutFeatures: 2, Seed: 1}
//	m, err := spec.Build()
package nn

import (
	"github.com/born-ml/learner/internal/nn"
)

// Module is the capability set every trainable module provides.
type Module = nn.Module

// Layer is a module with a forward pass.
type Layer = nn.Layer

// Kind classifies modules.
type Kind = nn.Kind

// Module kinds.
const (
	KindSingleAgent = nn.KindSingleAgent
	KindComposite   = nn.KindComposite
)

// Parameter is a trainable tensor with a gradient slot.
type Parameter = nn.Parameter

// ParamRef is a stable parameter identifier.
type ParamRef = nn.ParamRef

// State is a module's device-independent state.
type State = nn.State

// Linear is a fully connected layer.
type Linear = nn.Linear

// Value is a single free parameter.
type Value = nn.Value

// Composite groups child modules.
type Composite = nn.Composite

// Child is one Composite entry.
type Child = nn.Child

// DDPModule is a leaf wrapped for data-parallel training.
type DDPModule = nn.DDPModule

// Spec builds modules.
type Spec = nn.Spec

// SpecFunc adapts a function to Spec.
type SpecFunc = nn.SpecFunc

// LinearSpec builds a seeded Linear layer.
type LinearSpec = nn.LinearSpec

// ValueSpec builds a Value.
type ValueSpec = nn.ValueSpec

// CompositeSpec builds a Composite.
type CompositeSpec = nn.CompositeSpec

// ChildSpec names a CompositeSpec child.
type ChildSpec = nn.ChildSpec

// ErrUnknownParameter is returned for state entries naming no parameter.
var ErrUnknownParameter = nn.ErrUnknownParameter

// NewParameter creates a parameter.
func NewParameter(name string, t *RawTensor) *Parameter { return nn.NewParameter(name, t) }

// NewComposite creates a Composite.
func NewComposite(children ...Child) (*Composite, error) { return nn.NewComposite(children...) }

// MSE computes the mean squared error.
func MSE(backend Backend, predictions, targets *RawTensor) *RawTensor {
	return nn.MSE(backend, predictions, targets)
}

// SumSquares computes sum(x²).
func SumSquares(backend Backend, x *RawTensor) *RawTensor { return nn.SumSquares(backend, x) }
