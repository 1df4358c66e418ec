package learner

import (
	"context"
	"fmt"
	"sync"

	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/born-ml/learner/internal/device"
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
)

// ModuleRegistry owns the modules of a learner in insertion order.
//
// Add prepares a module completely (build, placement, optimizer binding and
// distributed wrapping) before publishing it under the registry lock, so a
// reader never observes a module that is half set up.
type ModuleRegistry struct {
	mu      sync.RWMutex
	order   []ModuleID
	entries map[ModuleID]*moduleEntry

	placer    *device.Placer
	placement device.Config
	binder    *OptimizerBinder
	wrapper   *DistributedWrapper // nil when not distributed
	params    *ParamRegistry
}

type moduleEntry struct {
	module nn.Module // wrapped when distributed
	pairs  []*OptimizerPair
	device tensor.Device
}

// NewModuleRegistry creates a registry. A nil wrapper disables wrapping.
func NewModuleRegistry(
	placer *device.Placer,
	placement device.Config,
	binder *OptimizerBinder,
	wrapper *DistributedWrapper,
	params *ParamRegistry,
) *ModuleRegistry {
	return &ModuleRegistry{
		entries:   make(map[ModuleID]*moduleEntry),
		placer:    placer,
		placement: placement,
		binder:    binder,
		wrapper:   wrapper,
		params:    params,
	}
}

// Add builds spec and registers the module under id. It fails with
// ErrDuplicateModule if id exists, unless WithOverride is given; an
// overridden module keeps its position and gets fresh optimizer state.
func (r *ModuleRegistry) Add(ctx context.Context, id ModuleID, spec nn.Spec, opts ...AddOption) (nn.Module, error) {
	if id == "" {
		return nil, fmt.Errorf("module id must not be empty")
	}
	o := collectOptions(opts)

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.entries[id]
	if exists && !o.override {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateModule, id)
	}

	module, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("build module %q: %w", id, err)
	}
	dev, err := r.placer.Place(ctx, module, r.placement)
	if err != nil {
		return nil, fmt.Errorf("place module %q: %w", id, err)
	}
	pairs, err := r.binder.bind(id, module, o)
	if err != nil {
		return nil, err
	}
	if r.wrapper != nil {
		if module, err = r.wrapper.Wrap(id, module); err != nil {
			return nil, err
		}
	}

	if !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = &moduleEntry{module: module, pairs: pairs, device: dev}
	r.params.Register(id, module)

	ctxlog.FromContext(ctx).Info("Module added",
		"module_id", id,
		"kind", module.Kind().String(),
		"device", dev.String(),
		"params", len(module.Parameters()),
		"replaced", exists,
	)
	return module, nil
}

// Get returns the module registered under id, wrapped when distributed.
func (r *ModuleRegistry) Get(id ModuleID) (nn.Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, id)
	}
	return e.module, nil
}

// Pairs returns the optimizer pairs of id.
func (r *ModuleRegistry) Pairs(id ModuleID) ([]*OptimizerPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, id)
	}
	out := make([]*OptimizerPair, len(e.pairs))
	copy(out, e.pairs)
	return out, nil
}

// AllPairs returns the optimizer pairs of every module in module order.
func (r *ModuleRegistry) AllPairs() []*OptimizerPair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*OptimizerPair
	for _, id := range r.order {
		out = append(out, r.entries[id].pairs...)
	}
	return out
}

// IDs returns the module ids in insertion order.
func (r *ModuleRegistry) IDs() []ModuleID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModuleID, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of modules.
func (r *ModuleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Remove unregisters id and returns the unwrapped module.
func (r *ModuleRegistry) Remove(ctx context.Context, id ModuleID) (nn.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, id)
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.params.Unregister(id)

	ctxlog.FromContext(ctx).Info("Module removed", "module_id", id)
	return unwrap(e.module), nil
}

// each calls fn for every module in order. The module list is taken
// before the first call so fn may block without holding the lock.
func (r *ModuleRegistry) each(fn func(id ModuleID, module nn.Module) error) error {
	r.mu.RLock()
	ids := make([]ModuleID, len(r.order))
	modules := make([]nn.Module, len(r.order))
	for i, id := range r.order {
		ids[i] = id
		modules[i] = r.entries[id].module
	}
	r.mu.RUnlock()

	for i, id := range ids {
		if err := fn(id, modules[i]); err != nil {
			return err
		}
	}
	return nil
}
