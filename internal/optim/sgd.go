package optim

import (
	"fmt"

	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter]*tensor.RawTensor
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer. A zero LR selects the default.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return newSGD(params, config)
}

// newSGD uses config as given.
func newSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter]*tensor.RawTensor),
	}
}

// Step performs a single optimization step.
// Parameters with an empty gradient slot are skipped.
func (s *SGD) Step() {
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		gradData := grad.Data()
		paramData := param.Tensor().Data()

		if s.momentum == 0 {
			for i := range paramData {
				paramData[i] -= s.lr * gradData[i]
			}
			continue
		}

		velocity, exists := s.velocities[param]
		if !exists {
			velocity = zerosLike(param)
			s.velocities[param] = velocity
		}
		vData := velocity.Data()
		for i := range paramData {
			vData[i] = s.momentum*vData[i] + gradData[i]
			paramData[i] -= s.lr * vData[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}

// Params returns the optimized parameters.
func (s *SGD) Params() []*nn.Parameter {
	return s.params
}

// StateDict exports velocity buffers as "velocity.{param_index}".
// Without momentum, returns an empty map.
func (s *SGD) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return stateDict
	}

	for i, param := range s.params {
		if velocity, exists := s.velocities[param]; exists {
			stateDict[fmt.Sprintf("velocity.%d", i)] = velocity.Clone()
		}
	}
	return stateDict
}

// LoadStateDict restores velocity buffers. If momentum is 0 the state is ignored.
func (s *SGD) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}

	velocities := make(map[*nn.Parameter]*tensor.RawTensor)
	for i, param := range s.params {
		key := fmt.Sprintf("velocity.%d", i)
		raw, exists := stateDict[key]
		if !exists {
			continue
		}
		v, err := loadBuffer(key, raw, param)
		if err != nil {
			return err
		}
		velocities[param] = v
	}
	s.velocities = velocities
	return nil
}
