// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers bound to learner modules.
//
// Optimizers read gradients from the parameters' gradient slots and skip
// parameters whose slot is empty.
//
//	opt, err := optim.New(optim.KindAdam, module.Parameters(), map[string]float64{"lr": 1e-3})
//	opt.Step()
package optim

import (
	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Kind names an optimizer algorithm.
type Kind = optim.Kind

// Optimizer kinds.
const (
	KindSGD  = optim.KindSGD
	KindAdam = optim.KindAdam
)

// Hyperparameter keys.
const (
	KeyLR       = optim.KeyLR
	KeyMomentum = optim.KeyMomentum
	KeyBeta1    = optim.KeyBeta1
	KeyBeta2    = optim.KeyBeta2
	KeyEps      = optim.KeyEps
)

// ErrMissingHyperparameter is returned when "lr" is absent.
var ErrMissingHyperparameter = optim.ErrMissingHyperparameter

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// New builds an optimizer of kind from hyperparameters.
func New(kind Kind, params []*nn.Parameter, hyper map[string]float64) (Optimizer, error) {
	return optim.New(kind, params, hyper)
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// NewAdam creates a new Adam optimizer with bias correction.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}
