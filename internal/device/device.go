// Package device resolves where modules live.
//
// Resolution depends only on the learner configuration and on injected
// capabilities: an Enumerator reporting how many accelerators are visible
// and an Assigner choosing the accelerator of a distributed worker. The
// process environment is never consulted.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
)

// ErrInvalidDevice is returned when a requested accelerator does not exist.
var ErrInvalidDevice = errors.New("invalid device")

// Config selects the placement policy.
type Config struct {
	UseAccelerator        bool
	Distributed           bool
	LocalAcceleratorIndex int
}

// Enumerator reports how many accelerators this process can see.
type Enumerator interface {
	Name() string
	Count() (int, error)
}

// Assigner picks the accelerator of a distributed worker.
type Assigner interface {
	Assign(ctx context.Context) (tensor.Device, error)
}

// AssignerFunc adapts a function to Assigner.
type AssignerFunc func(ctx context.Context) (tensor.Device, error)

// Assign calls f.
func (f AssignerFunc) Assign(ctx context.Context) (tensor.Device, error) { return f(ctx) }

// Placer resolves a device from Config and moves modules onto it.
type Placer struct {
	enum   Enumerator
	assign Assigner
}

// NewPlacer creates a placer. A nil enumerator counts zero accelerators; a
// nil assigner makes distributed accelerator placement fail.
func NewPlacer(enum Enumerator, assign Assigner) *Placer {
	if enum == nil {
		enum = CPUOnly()
	}
	return &Placer{enum: enum, assign: assign}
}

// Resolve computes the device for cfg without moving anything.
func (p *Placer) Resolve(ctx context.Context, cfg Config) (tensor.Device, error) {
	if !cfg.UseAccelerator {
		return tensor.CPU, nil
	}

	if cfg.Distributed {
		if p.assign == nil {
			return tensor.Device{}, fmt.Errorf("%w: distributed accelerator placement needs an assigner", ErrInvalidDevice)
		}
		dev, err := p.assign.Assign(ctx)
		if err != nil {
			return tensor.Device{}, fmt.Errorf("assign accelerator: %w", err)
		}
		return dev, nil
	}

	count, err := p.enum.Count()
	if err != nil {
		return tensor.Device{}, fmt.Errorf("enumerate %s accelerators: %w", p.enum.Name(), err)
	}
	idx := cfg.LocalAcceleratorIndex
	if idx < 0 || idx >= count {
		return tensor.Device{}, fmt.Errorf("%w: accelerator index %d, %d visible (%s)", ErrInvalidDevice, idx, count, p.enum.Name())
	}
	return tensor.Accelerator(idx), nil
}

// Place resolves the device for cfg and moves module onto it. Moving empties
// every gradient slot of the module.
func (p *Placer) Place(ctx context.Context, module nn.Module, cfg Config) (tensor.Device, error) {
	dev, err := p.Resolve(ctx, cfg)
	if err != nil {
		return tensor.Device{}, err
	}
	if err := module.To(dev); err != nil {
		return tensor.Device{}, fmt.Errorf("move module to %s: %w", dev, err)
	}
	ctxlog.FromContext(ctx).Debug("Placed module", "device", dev.String())
	return dev, nil
}
