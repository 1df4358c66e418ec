package nn

import (
	"context"
	"fmt"

	"github.com/born-ml/learner/internal/dist"
	"github.com/born-ml/learner/internal/tensor"
)

// DDPModule wraps a leaf module for distributed data-parallel training.
//
// The wrapper is transparent for parameters, placement and state; it adds
// SyncGradients, the blocking collective that averages gradients across the
// group. Each parameter is sent with a presence flag so a gradient that is
// empty on some members still averages correctly: the result is the sum of
// the present gradients divided by the group size, and the slot stays empty
// only if no member had a gradient.
type DDPModule struct {
	inner Module
	group dist.Group
}

// NewDDPModule wraps inner for group. Wrapping a DDPModule or a Composite
// is rejected; composites are wrapped child by child.
func NewDDPModule(inner Module, group dist.Group) (*DDPModule, error) {
	if _, ok := inner.(*DDPModule); ok {
		return nil, fmt.Errorf("ddp: module is already wrapped")
	}
	if inner.Kind() != KindSingleAgent {
		return nil, fmt.Errorf("ddp: only leaf modules can be wrapped, got %s", inner.Kind())
	}
	return &DDPModule{inner: inner, group: group}, nil
}

// Unwrap returns the wrapped module with its current values.
func (d *DDPModule) Unwrap() Module { return d.inner }

// Group returns the process group.
func (d *DDPModule) Group() dist.Group { return d.group }

// Forward delegates to the wrapped module. It panics if the module has no
// forward pass.
func (d *DDPModule) Forward(backend tensor.Backend, input *tensor.RawTensor) *tensor.RawTensor {
	layer, ok := d.inner.(Layer)
	if !ok {
		panic(fmt.Sprintf("DDPModule.Forward: wrapped %T has no forward pass", d.inner))
	}
	return layer.Forward(backend, input)
}

// Kind returns the wrapped module's kind.
func (d *DDPModule) Kind() Kind { return d.inner.Kind() }

// Parameters returns the wrapped module's parameters.
func (d *DDPModule) Parameters() []*Parameter { return d.inner.Parameters() }

// To moves the wrapped module.
func (d *DDPModule) To(device tensor.Device) error { return d.inner.To(device) }

// Device returns the wrapped module's device.
func (d *DDPModule) Device() tensor.Device { return d.inner.Device() }

// State exports the wrapped module's state.
func (d *DDPModule) State() State { return d.inner.State() }

// SetState writes the wrapped module's state.
func (d *DDPModule) SetState(s State) error { return d.inner.SetState(s) }

// SyncGradients averages every parameter gradient across the group.
// All members must call it the same number of times with the same module
// layout; it blocks until every member has arrived.
func (d *DDPModule) SyncGradients(ctx context.Context) error {
	params := d.inner.Parameters()

	size := 0
	for _, p := range params {
		size += 1 + p.Tensor().NumElements()
	}

	buf := make([]float32, size)
	off := 0
	for _, p := range params {
		n := p.Tensor().NumElements()
		if g := p.Grad(); g != nil {
			buf[off] = 1
			copy(buf[off+1:off+1+n], g.Data())
		}
		off += 1 + n
	}

	if err := d.group.AllReduceMean(ctx, buf); err != nil {
		return fmt.Errorf("ddp sync: %w", err)
	}

	off = 0
	for _, p := range params {
		n := p.Tensor().NumElements()
		if buf[off] > 0 {
			grad, err := tensor.FromSlice(buf[off+1:off+1+n], p.Shape(), p.Tensor().Device())
			if err != nil {
				return fmt.Errorf("ddp sync %q: %w", p.Name(), err)
			}
			p.SetGrad(grad)
		} else {
			p.ZeroGrad()
		}
		off += 1 + n
	}
	return nil
}
