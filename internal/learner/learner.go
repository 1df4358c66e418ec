// Package learner implements the multi-agent learner core.
//
// A Learner owns a dynamic set of trainable modules, one per agent or
// policy. Each module is placed on the learner's device, bound to its own
// optimizer state and, in distributed mode, wrapped for data-parallel
// training so that its gradients are averaged across the worker group.
//
// Typical use:
//
//	l, err := learner.New(cfg, learner.WithGroup(group))
//	err = l.Build(ctx)
//	_, err = l.AddModule(ctx, "policy_1", nn.LinearSpec{InFeatures: 4, OutFeatures: 2})
//	losses, err := l.Update(ctx, batch, lossFn)
package learner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/born-ml/learner/internal/autodiff"
	"github.com/born-ml/learner/internal/backend/cpu"
	"github.com/born-ml/learner/internal/checkpoint"
	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/born-ml/learner/internal/device"
	"github.com/born-ml/learner/internal/dist"
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/optim"
	"github.com/born-ml/learner/internal/tensor"
)

// Backend is the autodiff backend modules run their forward pass on.
type Backend = autodiff.AutodiffBackend[*cpu.CPUBackend]

// LossFunc runs the forward pass for one batch and returns the named loss
// tensors. The LossKeyTotal entry is differentiated.
type LossFunc func(ctx context.Context, l *Learner, batch NativeBatch) (map[string]*tensor.RawTensor, error)

// Option configures a Learner.
type Option func(*Learner)

// WithGroup sets the distributed process group. Without it a distributed
// learner runs as a group of one.
func WithGroup(group dist.Group) Option {
	return func(l *Learner) { l.group = group }
}

// WithEnumerator sets the accelerator enumerator used for placement.
func WithEnumerator(enum device.Enumerator) Option {
	return func(l *Learner) { l.enum = enum }
}

// WithAssigner sets the accelerator assigner used in distributed mode.
func WithAssigner(assign device.Assigner) Option {
	return func(l *Learner) { l.assign = assign }
}

// WithLogger sets the logger. It defaults to the context logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Learner) { l.logger = logger }
}

// WithBackend sets the compute backend.
func WithBackend(backend *Backend) Option {
	return func(l *Learner) { l.backend = backend }
}

// WithInitialModule adds a module during Build.
func WithInitialModule(id ModuleID, spec nn.Spec, opts ...AddOption) Option {
	return func(l *Learner) {
		l.initial = append(l.initial, initialModule{id: id, spec: spec, opts: opts})
	}
}

type initialModule struct {
	id   ModuleID
	spec nn.Spec
	opts []AddOption
}

// Learner is the per-worker learner core. One learner runs per worker;
// learners never share mutable state.
type Learner struct {
	cfg     Config
	group   dist.Group
	enum    device.Enumerator
	assign  device.Assigner
	logger  *slog.Logger
	initial []initialModule
	backend *Backend

	built   bool
	device  tensor.Device
	params  *ParamRegistry
	modules *ModuleRegistry
	engine  *GradientEngine
	weights *WeightSynchronizer
	step    int64
}

// New creates a learner. Build must be called before use.
func New(cfg Config, opts ...Option) (*Learner, error) {
	kind, err := optim.ParseKind(string(cfg.Optimizer))
	if err != nil {
		return nil, err
	}
	cfg.Optimizer = kind

	l := &Learner{cfg: cfg}
	for _, opt := range opts {
		opt(l)
	}
	if l.backend == nil {
		l.backend = autodiff.New(cpu.New())
	}
	return l, nil
}

// Build resolves the learner device, creates the registries and adds the
// initial modules.
func (l *Learner) Build(ctx context.Context) error {
	if l.built {
		return errors.New("learner already built")
	}
	if l.logger == nil {
		l.logger = ctxlog.FromContext(ctx)
	}
	ctx = ctxlog.WithLogger(ctx, l.logger)

	var wrapper *DistributedWrapper
	if l.cfg.Distributed {
		if l.group == nil {
			l.group = dist.Solo()
		}
		wrapper = NewDistributedWrapper(l.group)
	}

	placer := device.NewPlacer(l.enum, l.assign)
	dev, err := placer.Resolve(ctx, l.cfg.placement())
	if err != nil {
		return err
	}
	// Later placements reuse the resolved accelerator.
	if l.cfg.Distributed && l.cfg.UseAccelerator {
		placer = device.NewPlacer(l.enum, device.Fixed(dev))
	}

	l.device = dev
	l.params = NewParamRegistry()
	l.modules = NewModuleRegistry(
		placer,
		l.cfg.placement(),
		NewOptimizerBinder(l.cfg.Optimizer, l.cfg.OptimizerConfig),
		wrapper,
		l.params,
	)
	l.engine = NewGradientEngine(l.backend, l.modules, l.params, wrapper)
	l.weights = NewWeightSynchronizer(l.modules)

	for _, m := range l.initial {
		if _, err := l.modules.Add(ctx, m.id, m.spec, m.opts...); err != nil {
			return err
		}
	}
	l.built = true

	attrs := []any{"device", dev.String(), "modules", len(l.initial), "optimizer", string(l.cfg.Optimizer)}
	if l.group != nil {
		attrs = append(attrs, "rank", l.group.Rank(), "world_size", l.group.Size())
	}
	l.logger.Info("Learner built", attrs...)
	return nil
}

func (l *Learner) ready() error {
	if !l.built {
		return ErrNotBuilt
	}
	return nil
}

func (l *Learner) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, l.logger)
}

// Config returns the learner configuration.
func (l *Learner) Config() Config { return l.cfg }

// Device returns the device modules are placed on.
func (l *Learner) Device() tensor.Device { return l.device }

// Group returns the process group, or nil when not distributed.
func (l *Learner) Group() dist.Group { return l.group }

// Backend returns the compute backend.
func (l *Learner) Backend() *Backend { return l.backend }

// Step returns the number of completed updates.
func (l *Learner) Step() int64 { return l.step }

// Params returns the parameter registry.
func (l *Learner) Params() *ParamRegistry { return l.params }

// AddModule builds spec and registers the module under id. It may be
// called at any time after Build.
func (l *Learner) AddModule(ctx context.Context, id ModuleID, spec nn.Spec, opts ...AddOption) (nn.Module, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.modules.Add(l.context(ctx), id, spec, opts...)
}

// RemoveModule unregisters id and returns the unwrapped module.
func (l *Learner) RemoveModule(ctx context.Context, id ModuleID) (nn.Module, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.modules.Remove(l.context(ctx), id)
}

// Module returns the module registered under id.
func (l *Learner) Module(id ModuleID) (nn.Module, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.modules.Get(id)
}

// ModuleIDs returns the module ids in insertion order.
func (l *Learner) ModuleIDs() []ModuleID {
	if l.modules == nil {
		return nil
	}
	return l.modules.IDs()
}

// Pairs returns the optimizer pairs of id.
func (l *Learner) Pairs(id ModuleID) ([]*OptimizerPair, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.modules.Pairs(id)
}

// Forward runs the forward pass of module id on input.
func (l *Learner) Forward(id ModuleID, input *tensor.RawTensor) (*tensor.RawTensor, error) {
	m, err := l.Module(id)
	if err != nil {
		return nil, err
	}
	layer, ok := m.(nn.Layer)
	if !ok {
		return nil, fmt.Errorf("module %q (%s) has no forward pass", id, m.Kind())
	}
	return layer.Forward(l.backend, input), nil
}

// ComputeGradients computes gradients of loss[LossKeyTotal].
func (l *Learner) ComputeGradients(ctx context.Context, loss map[string]*tensor.RawTensor) (Gradients, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.engine.ComputeGradients(l.context(ctx), loss)
}

// ApplyGradients applies grads through the optimizer pairs.
func (l *Learner) ApplyGradients(grads Gradients) error {
	if err := l.ready(); err != nil {
		return err
	}
	return l.engine.ApplyGradients(grads)
}

// GetWeights exports the weights of ids, or of every module.
func (l *Learner) GetWeights(ids ...ModuleID) (Weights, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.weights.GetWeights(ids...)
}

// SetWeights writes w onto the registered modules.
func (l *Learner) SetWeights(w Weights) error {
	if err := l.ready(); err != nil {
		return err
	}
	return l.weights.SetWeights(w)
}

// ConvertBatch converts batch to tensors on the learner device. Every
// batch entry must name a registered module.
func (l *Learner) ConvertBatch(batch MultiAgentBatch) (NativeBatch, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	for id := range batch {
		if _, err := l.modules.Get(id); err != nil {
			return nil, err
		}
	}
	return ConvertBatch(batch, l.device)
}

// Update runs one training step: batch conversion, forward pass recorded
// on the tape, gradient computation (and synchronization) and optimizer
// steps. It returns the scalar loss values.
func (l *Learner) Update(ctx context.Context, batch MultiAgentBatch, lossFn LossFunc) (map[string]float32, error) {
	native, err := l.ConvertBatch(batch)
	if err != nil {
		return nil, err
	}
	ctx = l.context(ctx)

	tape := l.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	loss, err := lossFn(ctx, l, native)
	if err != nil {
		return nil, fmt.Errorf("loss: %w", err)
	}
	tape.StopRecording()

	grads, err := l.engine.ComputeGradients(ctx, loss)
	if err != nil {
		return nil, err
	}
	if err := l.engine.ApplyGradients(grads); err != nil {
		return nil, err
	}
	l.step++

	values := make(map[string]float32, len(loss))
	for name, t := range loss {
		if t != nil && t.NumElements() == 1 {
			values[name] = t.Item()
		}
	}
	l.logger.Debug("Update finished", "step", l.step, "loss", values[LossKeyTotal])
	return values, nil
}

// Checkpoint captures module weights, optimizer state and the step count.
func (l *Learner) Checkpoint() (*checkpoint.Checkpoint, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	w, err := l.weights.GetWeights()
	if err != nil {
		return nil, err
	}

	c := &checkpoint.Checkpoint{
		Step:      l.step,
		CreatedAt: time.Now().UTC(),
		Modules:   l.modules.IDs(),
		Metadata: map[string]string{
			"optimizer": string(l.cfg.Optimizer),
			"device":    l.device.String(),
		},
		Weights:   make(map[string]map[string]tensor.Array, len(w)),
		Optimizer: make(map[string]map[string]tensor.Array),
	}
	for id, state := range w {
		c.Weights[id] = state
	}
	for _, id := range c.Modules {
		pairs, err := l.modules.Pairs(id)
		if err != nil {
			return nil, err
		}
		state := make(map[string]tensor.Array)
		for i, pair := range pairs {
			for key, t := range pair.Optimizer().StateDict() {
				state[strconv.Itoa(i)+"/"+key] = t.ToArray()
			}
		}
		if len(state) > 0 {
			c.Optimizer[id] = state
		}
	}
	return c, nil
}

// Restore loads c into the registered modules. Every module in c must be
// registered with the same layout.
func (l *Learner) Restore(c *checkpoint.Checkpoint) error {
	if err := l.ready(); err != nil {
		return err
	}

	// Decode every optimizer entry before touching any module.
	type pending struct {
		pair *OptimizerPair
		dict map[string]*tensor.RawTensor
		prev map[string]*tensor.RawTensor
	}
	var loads []pending
	for _, id := range sortedIDs(c.Optimizer) {
		pairs, err := l.modules.Pairs(id)
		if err != nil {
			return err
		}
		perPair := make([]map[string]*tensor.RawTensor, len(pairs))
		for key, arr := range c.Optimizer[id] {
			idx, name, err := splitOptimizerKey(key, len(pairs))
			if err != nil {
				return fmt.Errorf("optimizer state of %q: %w", id, err)
			}
			t, err := tensor.FromArray(arr, tensor.CPU)
			if err != nil {
				return fmt.Errorf("optimizer state of %q key %q: %w", id, key, err)
			}
			if perPair[idx] == nil {
				perPair[idx] = make(map[string]*tensor.RawTensor)
			}
			perPair[idx][name] = t
		}
		for i, dict := range perPair {
			if dict != nil {
				loads = append(loads, pending{pair: pairs[i], dict: dict})
			}
		}
	}

	// LoadStateDict leaves an optimizer untouched on error, so only the
	// pairs already loaded need their previous state back.
	rollback := func(n int) {
		for _, p := range loads[:n] {
			_ = p.pair.Optimizer().LoadStateDict(p.prev)
		}
	}
	for i := range loads {
		loads[i].prev = loads[i].pair.Optimizer().StateDict()
		if err := loads[i].pair.Optimizer().LoadStateDict(loads[i].dict); err != nil {
			rollback(i)
			return fmt.Errorf("optimizer state: %w", err)
		}
	}

	w := make(Weights, len(c.Weights))
	for id, state := range c.Weights {
		w[id] = state
	}
	if err := l.weights.SetWeights(w); err != nil {
		rollback(len(loads))
		return err
	}
	l.step = c.Step
	return nil
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// splitOptimizerKey parses "<pair>/<key>".
func splitOptimizerKey(key string, pairs int) (int, string, error) {
	prefix, name, ok := strings.Cut(key, "/")
	if !ok {
		return 0, "", fmt.Errorf("invalid key %q", key)
	}
	idx, err := strconv.Atoi(prefix)
	if err != nil || idx < 0 || idx >= pairs {
		return 0, "", fmt.Errorf("invalid key %q", key)
	}
	return idx, name, nil
}

// SaveCheckpoint writes a checkpoint file to path.
func (l *Learner) SaveCheckpoint(ctx context.Context, path string) error {
	c, err := l.Checkpoint()
	if err != nil {
		return err
	}
	if err := checkpoint.Save(path, c); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	ctxlog.FromContext(l.context(ctx)).Info("Checkpoint saved", "path", path, "step", l.step)
	return nil
}

// RestoreCheckpoint loads the checkpoint file at path.
func (l *Learner) RestoreCheckpoint(ctx context.Context, path string) error {
	c, err := checkpoint.Load(path)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if err := l.Restore(c); err != nil {
		return err
	}
	ctxlog.FromContext(l.context(ctx)).Info("Checkpoint restored", "path", path, "step", c.Step)
	return nil
}
