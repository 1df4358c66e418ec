package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/learner/internal/learner"
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
learner {
  use_accelerator         = false
  distributed             = true
  local_accelerator_index = 1
  optimizer               = "sgd"
  optimizer_config        = { lr = 0.05, momentum = 0.9 }
}

training {
  steps      = 20
  workers    = 2
  batch_size = 8
  seed       = 7
  checkpoint = "out.blrn"
}

module "policy_1" {
  in_features  = 4
  out_features = 2
  optimizer    = "adam"
}

module "entropy" {
  kind = "value"
  init = [0.5]
}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample), "sample.hcl")
	require.NoError(t, err)

	assert.True(t, cfg.Learner.Distributed)
	assert.False(t, cfg.Learner.UseAccelerator)
	assert.Equal(t, 1, cfg.Learner.LocalAcceleratorIndex)
	assert.Equal(t, optim.KindSGD, cfg.Learner.Optimizer)
	assert.Equal(t, map[string]float64{"lr": 0.05, "momentum": 0.9}, cfg.Learner.OptimizerConfig)

	assert.Equal(t, Training{Steps: 20, Workers: 2, BatchSize: 8, Seed: 7, Checkpoint: "out.blrn"}, cfg.Training)

	require.Len(t, cfg.Modules, 2)
	assert.Equal(t, "policy_1", cfg.Modules[0].ID)
	assert.Equal(t, nn.LinearSpec{InFeatures: 4, OutFeatures: 2}, cfg.Modules[0].Spec())
	assert.Len(t, cfg.Modules[0].Options(), 1)
	assert.Equal(t, nn.ValueSpec{Name: "entropy", Init: []float32{0.5}}, cfg.Modules[1].Spec())
	assert.Empty(t, cfg.Modules[1].Options())
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(``), "empty.hcl")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_MissingLearningRateStaysMissing(t *testing.T) {
	cfg, err := Parse([]byte(`
learner {
  optimizer = "adam"
}
module "p" {
  in_features  = 1
  out_features = 1
}
`), "nolr.hcl")
	require.NoError(t, err)
	assert.NotContains(t, cfg.Learner.OptimizerConfig, optim.KeyLR)

	l, err := learner.New(cfg.Learner)
	require.NoError(t, err)
	require.NoError(t, l.Build(context.Background()))
	_, err = l.AddModule(context.Background(), cfg.Modules[0].ID, cfg.Modules[0].Spec())
	assert.ErrorIs(t, err, learner.ErrMissingHyperparameter)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `learner {`},
		{"unknown attribute", `learner { speed = 1 }`},
		{"unknown optimizer", `learner { optimizer = "rmsprop" }`},
		{"non-numeric hyperparameter", `learner { optimizer_config = { lr = "fast" } }`},
		{"workers", `training { workers = 0 }`},
		{"linear without features", `module "p" {}`},
		{"unknown kind", "module \"p\" {\n kind = \"conv\"\n}"},
		{"duplicate module", "module \"p\" {\n in_features = 1\n out_features = 1\n}\nmodule \"p\" {\n in_features = 1\n out_features = 1\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), tt.name+".hcl")
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learner.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Training.Steps)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}
