package learner

import (
	"context"
	"fmt"

	"github.com/born-ml/learner/internal/autodiff"
	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
)

// Gradients maps parameter references to gradients. A nil gradient means
// the parameter receives no update.
type Gradients map[nn.ParamRef]*tensor.RawTensor

// GradientEngine computes gradients from a loss and applies them through
// the optimizer pairs.
//
// Compute and apply are single-writer: the engine adds no locking around a
// step, and registry changes must not happen between the two calls.
type GradientEngine struct {
	backend autodiff.BackwardCapable
	modules *ModuleRegistry
	params  *ParamRegistry
	wrapper *DistributedWrapper // nil when not distributed
}

// NewGradientEngine creates an engine. A nil wrapper disables gradient
// synchronization.
func NewGradientEngine(
	backend autodiff.BackwardCapable,
	modules *ModuleRegistry,
	params *ParamRegistry,
	wrapper *DistributedWrapper,
) *GradientEngine {
	return &GradientEngine{backend: backend, modules: modules, params: params, wrapper: wrapper}
}

// ComputeGradients differentiates loss[LossKeyTotal] with respect to every
// registered parameter.
//
// Every gradient slot is emptied first, so parameters the loss does not
// depend on come back as nil. In distributed mode the gradients of each
// wrapped module are averaged across the group before returning; a member
// failure surfaces as ErrGroupBroken. The tape is left intact, so calling
// this twice on the same loss yields the same gradients.
func (e *GradientEngine) ComputeGradients(ctx context.Context, loss map[string]*tensor.RawTensor) (Gradients, error) {
	total, ok := loss[LossKeyTotal]
	if !ok || total == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingLossKey, LossKeyTotal)
	}

	for _, pair := range e.modules.AllPairs() {
		pair.Zero()
	}
	e.params.ZeroAll()

	grads := autodiff.Backward(total, e.backend)

	refs := e.params.Refs()
	for _, ref := range refs {
		p, _, ok := e.params.Lookup(ref)
		if !ok {
			continue
		}
		if g, ok := grads[p.Tensor()]; ok {
			p.SetGrad(g.To(p.Tensor().Device()))
		}
	}

	if e.wrapper != nil {
		err := e.modules.each(func(id ModuleID, module nn.Module) error {
			return e.wrapper.SyncGradients(ctx, id, module)
		})
		if err != nil {
			return nil, err
		}
	}

	out := make(Gradients, len(refs))
	for _, ref := range refs {
		if p, _, ok := e.params.Lookup(ref); ok {
			out[ref] = p.Grad()
		}
	}

	ctxlog.FromContext(ctx).Debug("Gradients computed", "params", len(refs))
	return out, nil
}

// ApplyGradients writes grads into the parameter slots and steps every
// optimizer pair that received at least one gradient.
//
// All refs and shapes are checked before anything is modified: an unknown
// ref fails with ErrUnknownParamRef and a wrong shape with ErrShapeMismatch.
func (e *GradientEngine) ApplyGradients(grads Gradients) error {
	targets := make(map[*nn.Parameter]*tensor.RawTensor, len(grads))
	for ref, g := range grads {
		p, _, ok := e.params.Lookup(ref)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownParamRef, ref)
		}
		if g == nil {
			continue
		}
		if !g.Shape().Equal(p.Shape()) {
			return fmt.Errorf("parameter %q: %w", p.Name(),
				&tensor.ShapeError{Op: "apply gradients", Want: p.Shape(), Got: g.Shape()})
		}
		targets[p] = g
	}

	pairs := e.modules.AllPairs()
	for _, pair := range pairs {
		pair.Zero()
	}
	e.params.ZeroAll()

	for p, g := range targets {
		p.SetGrad(g.To(p.Tensor().Device()))
	}

	for _, pair := range pairs {
		if pair.HasGradient() {
			pair.Step()
		}
	}
	return nil
}
