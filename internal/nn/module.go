// Package nn implements the trainable modules driven by the learner core.
//
// This package provides:
//   - Module interface: capability surface every trainable unit exposes
//   - Parameter: trainable tensor with a stable ParamRef and a gradient slot
//   - Linear, Value: leaf modules with a Forward pass
//   - Composite: container of child modules keyed by id
//   - DDPModule: distributed data-parallel wrapper around a leaf
package nn

import (
	"github.com/born-ml/learner/internal/tensor"
)

// Kind is the closed set of module shapes the learner understands.
type Kind int

const (
	// KindSingleAgent is a leaf module owning its parameters directly.
	KindSingleAgent Kind = iota
	// KindComposite groups child modules, one per agent or sub-policy.
	KindComposite
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSingleAgent:
		return "single_agent"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Module is the base interface for all trainable components.
//
// Every module lives on exactly one device. Moving a module with To relocates
// every parameter in place (ParamRefs and tensor identities survive) and
// empties every gradient slot.
type Module interface {
	// Kind reports whether this is a leaf or a composite.
	Kind() Kind

	// Parameters returns all trainable parameters in a stable order,
	// including those of nested modules.
	Parameters() []*Parameter

	// To moves the module to device.
	To(device tensor.Device) error

	// Device returns the device the module lives on.
	Device() tensor.Device

	// State exports parameter values keyed by qualified name.
	State() State

	// SetState overwrites parameter values from s. Keys absent from s are
	// left untouched. Nothing is written if any entry is invalid.
	SetState(s State) error
}

// Layer is a leaf module with a forward pass.
type Layer interface {
	Module

	// Forward computes the module output for input. All operations go
	// through backend so they can be recorded for differentiation.
	Forward(backend tensor.Backend, input *tensor.RawTensor) *tensor.RawTensor
}
