// Package config loads learner run configuration from HCL files.
package config

import (
	"context"
	"fmt"

	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/born-ml/learner/internal/learner"
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/optim"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Module kinds accepted in module blocks.
const (
	ModuleKindLinear = "linear"
	ModuleKindValue  = "value"
)

// Config is a decoded run configuration.
type Config struct {
	Learner  learner.Config
	Training Training
	Modules  []Module
}

// Training holds the settings of the train command.
type Training struct {
	Steps      int
	Workers    int
	BatchSize  int
	Seed       int64
	Checkpoint string
}

// Module describes one module block.
type Module struct {
	ID          string
	Kind        string
	InFeatures  int
	OutFeatures int
	Seed        int64
	Init        []float32
	Optimizer   optim.Kind
}

// Spec returns the module spec.
func (m Module) Spec() nn.Spec {
	switch m.Kind {
	case ModuleKindValue:
		return nn.ValueSpec{Name: m.ID, Init: m.Init}
	default:
		return nn.LinearSpec{InFeatures: m.InFeatures, OutFeatures: m.OutFeatures, Seed: m.Seed}
	}
}

// Options returns the add options of the module.
func (m Module) Options() []learner.AddOption {
	if m.Optimizer == "" {
		return nil
	}
	return []learner.AddOption{learner.WithOptimizerKind(m.Optimizer)}
}

type hclFile struct {
	Learner  *hclLearner  `hcl:"learner,block"`
	Training *hclTraining `hcl:"training,block"`
	Modules  []*hclModule `hcl:"module,block"`
}

type hclLearner struct {
	UseAccelerator        *bool          `hcl:"use_accelerator,optional"`
	Distributed           *bool          `hcl:"distributed,optional"`
	LocalAcceleratorIndex *int           `hcl:"local_accelerator_index,optional"`
	Optimizer             *string        `hcl:"optimizer,optional"`
	OptimizerConfig       hcl.Expression `hcl:"optimizer_config,optional"`
}

type hclTraining struct {
	Steps      *int    `hcl:"steps,optional"`
	Workers    *int    `hcl:"workers,optional"`
	BatchSize  *int    `hcl:"batch_size,optional"`
	Seed       *int64  `hcl:"seed,optional"`
	Checkpoint *string `hcl:"checkpoint,optional"`
}

type hclModule struct {
	ID          string    `hcl:"id,label"`
	Kind        *string   `hcl:"kind,optional"`
	InFeatures  *int      `hcl:"in_features,optional"`
	OutFeatures *int      `hcl:"out_features,optional"`
	Seed        *int64    `hcl:"seed,optional"`
	Init        []float64 `hcl:"init,optional"`
	Optimizer   *string   `hcl:"optimizer,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Learner: learner.DefaultConfig(),
		Training: Training{
			Steps:     100,
			Workers:   1,
			BatchSize: 32,
			Seed:      1,
		},
	}
}

// Load parses and decodes the HCL file at path.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding config file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	cfg, err := decode(file.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, err)
	}

	logger.Debug("Successfully decoded config file.", "path", path, "modules_found", len(cfg.Modules))
	return cfg, nil
}

// Parse decodes HCL source. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	cfg, err := decode(file.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode HCL %s: %w", filename, err)
	}
	return cfg, nil
}

func decode(body hcl.Body) (*Config, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(body, nil, &parsed); diags.HasErrors() {
		return nil, diags
	}

	cfg := Default()
	if l := parsed.Learner; l != nil {
		cfg.Learner.OptimizerConfig = nil
		setIfPresent(&cfg.Learner.UseAccelerator, l.UseAccelerator)
		setIfPresent(&cfg.Learner.Distributed, l.Distributed)
		setIfPresent(&cfg.Learner.LocalAcceleratorIndex, l.LocalAcceleratorIndex)
		if l.Optimizer != nil {
			kind, err := optim.ParseKind(*l.Optimizer)
			if err != nil {
				return nil, err
			}
			cfg.Learner.Optimizer = kind
		}
		hyper, err := decodeHyperparameters(l.OptimizerConfig)
		if err != nil {
			return nil, err
		}
		cfg.Learner.OptimizerConfig = hyper
	}

	if t := parsed.Training; t != nil {
		setIfPresent(&cfg.Training.Steps, t.Steps)
		setIfPresent(&cfg.Training.Workers, t.Workers)
		setIfPresent(&cfg.Training.BatchSize, t.BatchSize)
		setIfPresent(&cfg.Training.Seed, t.Seed)
		setIfPresent(&cfg.Training.Checkpoint, t.Checkpoint)
	}
	if cfg.Training.Workers < 1 {
		return nil, fmt.Errorf("training: workers must be positive, got %d", cfg.Training.Workers)
	}
	if cfg.Training.BatchSize < 1 {
		return nil, fmt.Errorf("training: batch_size must be positive, got %d", cfg.Training.BatchSize)
	}

	seen := make(map[string]bool, len(parsed.Modules))
	for _, pm := range parsed.Modules {
		if seen[pm.ID] {
			return nil, fmt.Errorf("module %q: %w", pm.ID, learner.ErrDuplicateModule)
		}
		seen[pm.ID] = true

		m, err := decodeModule(pm)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", pm.ID, err)
		}
		cfg.Modules = append(cfg.Modules, m)
	}
	return cfg, nil
}

func decodeModule(pm *hclModule) (Module, error) {
	m := Module{ID: pm.ID, Kind: ModuleKindLinear}
	setIfPresent(&m.Kind, pm.Kind)
	setIfPresent(&m.InFeatures, pm.InFeatures)
	setIfPresent(&m.OutFeatures, pm.OutFeatures)
	setIfPresent(&m.Seed, pm.Seed)
	for _, v := range pm.Init {
		m.Init = append(m.Init, float32(v))
	}
	if pm.Optimizer != nil {
		kind, err := optim.ParseKind(*pm.Optimizer)
		if err != nil {
			return Module{}, err
		}
		m.Optimizer = kind
	}

	switch m.Kind {
	case ModuleKindLinear:
		if m.InFeatures <= 0 || m.OutFeatures <= 0 {
			return Module{}, fmt.Errorf("linear module needs positive in_features and out_features")
		}
	case ModuleKindValue:
		if len(m.Init) == 0 {
			return Module{}, fmt.Errorf("value module needs a non-empty init list")
		}
	default:
		return Module{}, fmt.Errorf("unknown module kind %q", m.Kind)
	}
	return m, nil
}

// decodeHyperparameters converts the optimizer_config object into a map.
// An absent attribute yields an empty map, so a missing "lr" surfaces when
// the optimizer is bound.
func decodeHyperparameters(expr hcl.Expression) (map[string]float64, error) {
	out := make(map[string]float64)
	if expr == nil {
		return out, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return out, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("optimizer_config must be an object, got %s", ty.FriendlyName())
	}

	it := val.ElementIterator()
	for it.Next() {
		key, v := it.Element()
		name := key.AsString()
		if v.IsNull() || v.Type() != cty.Number {
			return nil, fmt.Errorf("optimizer_config.%s must be a number", name)
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("optimizer_config.%s: %w", name, err)
		}
		out[name] = f
	}
	return out, nil
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
