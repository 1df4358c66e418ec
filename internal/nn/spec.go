package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/learner/internal/tensor"
)

// Spec describes how to build a module. Building is deterministic for a
// given spec so that every distributed worker constructs identical weights.
type Spec interface {
	Build() (Module, error)
}

// SpecFunc adapts a function to Spec.
type SpecFunc func() (Module, error)

// Build calls f.
func (f SpecFunc) Build() (Module, error) { return f() }

// LinearSpec builds a Linear layer seeded with Seed.
type LinearSpec struct {
	InFeatures  int
	OutFeatures int
	Seed        int64
}

// Build creates the layer.
func (s LinearSpec) Build() (Module, error) {
	if s.InFeatures <= 0 || s.OutFeatures <= 0 {
		return nil, fmt.Errorf("linear spec: features must be positive, got in=%d out=%d", s.InFeatures, s.OutFeatures)
	}
	//nolint:gosec // deterministic initialization
	return NewLinear(s.InFeatures, s.OutFeatures, rand.New(rand.NewSource(s.Seed))), nil
}

// ValueSpec builds a Value module.
type ValueSpec struct {
	Name  string
	Init  []float32
	Shape tensor.Shape
}

// Build creates the value. A nil Shape means a 1-D tensor of len(Init).
func (s ValueSpec) Build() (Module, error) {
	name := s.Name
	if name == "" {
		name = "value"
	}
	shape := s.Shape
	if shape == nil {
		shape = tensor.Shape{len(s.Init)}
	}
	return NewValue(name, s.Init, shape)
}

// CompositeSpec builds a Composite from child specs in order.
type CompositeSpec struct {
	Children []ChildSpec
}

// ChildSpec names one child of a CompositeSpec.
type ChildSpec struct {
	ID   string
	Spec Spec
}

// Build creates every child and the composite.
func (s CompositeSpec) Build() (Module, error) {
	c, err := NewComposite()
	if err != nil {
		return nil, err
	}
	for _, cs := range s.Children {
		m, err := cs.Spec.Build()
		if err != nil {
			return nil, fmt.Errorf("composite child %q: %w", cs.ID, err)
		}
		if err := c.Add(cs.ID, m); err != nil {
			return nil, err
		}
	}
	return c, nil
}
