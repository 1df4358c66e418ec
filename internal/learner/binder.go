package learner

import (
	"fmt"

	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/optim"
)

// OptimizerPair binds a set of parameters to one optimizer and its state.
type OptimizerPair struct {
	params    []*nn.Parameter
	optimizer optim.Optimizer
}

// NewOptimizerPair pairs opt with the parameters it updates.
func NewOptimizerPair(opt optim.Optimizer) *OptimizerPair {
	return &OptimizerPair{params: opt.Params(), optimizer: opt}
}

// Params returns the paired parameters.
func (p *OptimizerPair) Params() []*nn.Parameter { return p.params }

// Optimizer returns the paired optimizer.
func (p *OptimizerPair) Optimizer() optim.Optimizer { return p.optimizer }

// Zero empties the gradient slots of the paired parameters.
func (p *OptimizerPair) Zero() { p.optimizer.ZeroGrad() }

// Step applies one optimizer update.
func (p *OptimizerPair) Step() { p.optimizer.Step() }

// HasGradient reports whether any paired parameter holds a gradient.
func (p *OptimizerPair) HasGradient() bool {
	for _, param := range p.params {
		if param.Grad() != nil {
			return true
		}
	}
	return false
}

// OptimizerFunc builds the optimizer pairs of a module.
type OptimizerFunc func(module nn.Module) ([]*OptimizerPair, error)

// AddOption customizes how a module is added.
type AddOption func(*addOptions)

type addOptions struct {
	override      bool
	optimizerFunc OptimizerFunc
	optimizerKind optim.Kind
}

// WithOverride replaces an existing module with the same id. The old
// module's optimizer state is discarded.
func WithOverride() AddOption {
	return func(o *addOptions) { o.override = true }
}

// WithOptimizerFunc binds optimizers with fn instead of the default.
func WithOptimizerFunc(fn OptimizerFunc) AddOption {
	return func(o *addOptions) { o.optimizerFunc = fn }
}

// WithOptimizerKind selects the optimizer kind for this module only.
func WithOptimizerKind(kind optim.Kind) AddOption {
	return func(o *addOptions) { o.optimizerKind = kind }
}

func collectOptions(opts []AddOption) addOptions {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// OptimizerBinder creates the optimizer pairs of each module.
type OptimizerBinder struct {
	kind  optim.Kind
	hyper map[string]float64
}

// NewOptimizerBinder creates a binder using kind and hyper by default.
func NewOptimizerBinder(kind optim.Kind, hyper map[string]float64) *OptimizerBinder {
	h := make(map[string]float64, len(hyper))
	for k, v := range hyper {
		h[k] = v
	}
	return &OptimizerBinder{kind: kind, hyper: h}
}

// Bind returns fresh optimizer pairs for module. By default a single pair
// covers every parameter.
func (b *OptimizerBinder) Bind(id ModuleID, module nn.Module, opts ...AddOption) ([]*OptimizerPair, error) {
	o := collectOptions(opts)
	return b.bind(id, module, o)
}

func (b *OptimizerBinder) bind(id ModuleID, module nn.Module, o addOptions) ([]*OptimizerPair, error) {
	if o.optimizerFunc != nil {
		pairs, err := o.optimizerFunc(module)
		if err != nil {
			return nil, fmt.Errorf("bind optimizer for %q: %w", id, err)
		}
		if err := validatePairs(module, pairs); err != nil {
			return nil, fmt.Errorf("bind optimizer for %q: %w", id, err)
		}
		return pairs, nil
	}

	kind := b.kind
	if o.optimizerKind != "" {
		kind = o.optimizerKind
	}
	opt, err := optim.New(kind, module.Parameters(), b.hyper)
	if err != nil {
		return nil, fmt.Errorf("bind optimizer for %q: %w", id, err)
	}
	return []*OptimizerPair{NewOptimizerPair(opt)}, nil
}

// validatePairs checks that every paired parameter belongs to module and
// appears in one pair only.
func validatePairs(module nn.Module, pairs []*OptimizerPair) error {
	owned := make(map[nn.ParamRef]bool)
	for _, p := range module.Parameters() {
		owned[p.Ref()] = true
	}
	seen := make(map[nn.ParamRef]bool)
	for i, pair := range pairs {
		if pair == nil {
			return fmt.Errorf("pair %d is nil", i)
		}
		for _, p := range pair.Params() {
			if !owned[p.Ref()] {
				return fmt.Errorf("pair %d: parameter %q does not belong to the module", i, p.Name())
			}
			if seen[p.Ref()] {
				return fmt.Errorf("pair %d: parameter %q is bound twice", i, p.Name())
			}
			seen[p.Ref()] = true
		}
	}
	return nil
}
