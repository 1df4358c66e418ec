// Package optim implements optimization algorithms for training modules.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - New: factory building an optimizer from a kind and hyperparameters
//
// Optimizers read gradients from the parameters' gradient slots. A parameter
// with an empty slot is skipped by Step.
//
// Example usage:
//
//	optimizer, err := optim.New(optim.KindAdam, module.Parameters(), map[string]float64{"lr": 1e-3})
//	optimizer.ZeroGrad()
//	// ... write gradients into the parameters ...
//	optimizer.Step()
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
)

// ErrMissingHyperparameter is returned when a required hyperparameter
// (such as "lr") is absent from the optimizer configuration.
var ErrMissingHyperparameter = errors.New("missing hyperparameter")

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies one update to every parameter holding a gradient.
	Step()

	// ZeroGrad empties the gradient slot of every parameter.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate.
	SetLR(lr float32)

	// Params returns the parameters this optimizer updates.
	Params() []*nn.Parameter

	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores state produced by StateDict.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Kind names an optimizer algorithm.
type Kind string

const (
	// KindSGD selects SGD.
	KindSGD Kind = "sgd"
	// KindAdam selects Adam.
	KindAdam Kind = "adam"
)

// Hyperparameter keys understood by New.
const (
	KeyLR       = "lr"
	KeyMomentum = "momentum"
	KeyBeta1    = "beta1"
	KeyBeta2    = "beta2"
	KeyEps      = "eps"
)

// New builds an optimizer of kind over params. The "lr" key is required.
// Optional keys fall back to defaults only when absent; a present value,
// including zero, is used as given.
func New(kind Kind, params []*nn.Parameter, hyper map[string]float64) (Optimizer, error) {
	lr, ok := hyper[KeyLR]
	if !ok {
		return nil, fmt.Errorf("%w: %q for %s optimizer", ErrMissingHyperparameter, KeyLR, kind)
	}

	switch kind {
	case KindSGD:
		return newSGD(params, SGDConfig{
			LR:       float32(lr),
			Momentum: hyperOr(hyper, KeyMomentum, 0),
		}), nil
	case KindAdam, "":
		return newAdam(params, AdamConfig{
			LR:    float32(lr),
			Betas: [2]float32{hyperOr(hyper, KeyBeta1, 0.9), hyperOr(hyper, KeyBeta2, 0.999)},
			Eps:   hyperOr(hyper, KeyEps, 1e-8),
		}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer kind %q", kind)
	}
}

func hyperOr(hyper map[string]float64, key string, def float32) float32 {
	if v, ok := hyper[key]; ok {
		return float32(v)
	}
	return def
}

// ParseKind validates an optimizer name. The empty string selects Adam.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSGD:
		return KindSGD, nil
	case KindAdam, "":
		return KindAdam, nil
	default:
		return "", fmt.Errorf("unknown optimizer kind %q", s)
	}
}

// zeroGrad empties every gradient slot.
func zeroGrad(params []*nn.Parameter) {
	for _, param := range params {
		param.ZeroGrad()
	}
}

// zerosLike allocates a zero buffer shaped like param on the CPU.
func zerosLike(param *nn.Parameter) *tensor.RawTensor {
	t, err := tensor.NewRaw(param.Shape(), tensor.CPU)
	if err != nil {
		panic(fmt.Sprintf("optim: failed to allocate state for %q: %v", param.Name(), err))
	}
	return t
}

// loadBuffer validates and copies a saved buffer for param.
func loadBuffer(key string, raw *tensor.RawTensor, param *nn.Parameter) (*tensor.RawTensor, error) {
	if !raw.Shape().Equal(param.Shape()) {
		return nil, fmt.Errorf("%s: %w", key, &tensor.ShapeError{Op: "load state", Want: param.Shape(), Got: raw.Shape()})
	}
	return raw.To(tensor.CPU), nil
}
