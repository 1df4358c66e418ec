package learner

import (
	"sync"

	"github.com/born-ml/learner/internal/nn"
)

// ModuleID identifies a module within a learner.
type ModuleID = string

// ParamRegistry maps stable parameter references to the live parameters of
// every registered module.
type ParamRegistry struct {
	mu       sync.RWMutex
	params   map[nn.ParamRef]paramEntry
	byModule map[ModuleID][]nn.ParamRef
	order    []nn.ParamRef
}

type paramEntry struct {
	param  *nn.Parameter
	module ModuleID
}

// NewParamRegistry creates an empty registry.
func NewParamRegistry() *ParamRegistry {
	return &ParamRegistry{
		params:   make(map[nn.ParamRef]paramEntry),
		byModule: make(map[ModuleID][]nn.ParamRef),
	}
}

// Register adds the parameters of module under id, replacing any
// parameters previously registered for id.
func (r *ParamRegistry) Register(id ModuleID, module nn.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unregisterLocked(id)
	params := module.Parameters()
	refs := make([]nn.ParamRef, 0, len(params))
	for _, p := range params {
		r.params[p.Ref()] = paramEntry{param: p, module: id}
		refs = append(refs, p.Ref())
	}
	r.byModule[id] = refs
	r.order = append(r.order, refs...)
}

// Unregister drops the parameters of id. Their refs become unknown.
func (r *ParamRegistry) Unregister(id ModuleID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(id)
}

func (r *ParamRegistry) unregisterLocked(id ModuleID) {
	refs, ok := r.byModule[id]
	if !ok {
		return
	}
	for _, ref := range refs {
		delete(r.params, ref)
	}
	delete(r.byModule, id)

	kept := r.order[:0]
	for _, ref := range r.order {
		if _, ok := r.params[ref]; ok {
			kept = append(kept, ref)
		}
	}
	r.order = kept
}

// Lookup resolves ref to its parameter and owning module.
func (r *ParamRegistry) Lookup(ref nn.ParamRef) (*nn.Parameter, ModuleID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.params[ref]
	return e.param, e.module, ok
}

// Refs returns every registered ref in registration order.
func (r *ParamRegistry) Refs() []nn.ParamRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]nn.ParamRef, len(r.order))
	copy(out, r.order)
	return out
}

// ModuleRefs returns the refs registered for id.
func (r *ParamRegistry) ModuleRefs(id ModuleID) []nn.ParamRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := r.byModule[id]
	out := make([]nn.ParamRef, len(refs))
	copy(out, refs)
	return out
}

// Len returns the number of registered parameters.
func (r *ParamRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ZeroAll empties every gradient slot.
func (r *ParamRegistry) ZeroAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.params {
		e.param.ZeroGrad()
	}
}
