package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// On the first step m_hat/sqrt(v_hat) = sign(gradient), so every parameter
// with a nonzero gradient moves by lr.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []*nn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int                                 // Timestep for bias correction
	m      map[*nn.Parameter]*tensor.RawTensor // First moment estimates
	v      map[*nn.Parameter]*tensor.RawTensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, defaulting unset hyperparameters.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return newAdam(params, config)
}

// newAdam uses config as given.
func newAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter]*tensor.RawTensor),
		v:      make(map[*nn.Parameter]*tensor.RawTensor),
	}
}

// Step performs a single optimization step using Adam algorithm.
// Parameters with an empty gradient slot are skipped.
func (a *Adam) Step() {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		m, mExists := a.m[param]
		if !mExists {
			m = zerosLike(param)
			a.m[param] = m
		}
		v, vExists := a.v[param]
		if !vExists {
			v = zerosLike(param)
			a.v[param] = v
		}

		a.updateParameter(param, grad, m, v, biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam) updateParameter(
	param *nn.Parameter,
	grad, m, v *tensor.RawTensor,
	biasCorrection1, biasCorrection2 float32,
) {
	gradData := grad.Data()
	mData := m.Data()
	vData := v.Data()
	paramData := param.Tensor().Data()

	for i := range paramData {
		g := gradData[i]
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// Params returns the optimized parameters.
func (a *Adam) Params() []*nn.Parameter {
	return a.params
}

// GetTimestep returns the current timestep.
func (a *Adam) GetTimestep() int {
	return a.t
}

// StateDict exports "m.{i}", "v.{i}" and the timestep as a scalar "t".
func (a *Adam) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"t": tensor.Scalar(float32(a.t), tensor.CPU),
	}
	for i, param := range a.params {
		if m, ok := a.m[param]; ok {
			stateDict[fmt.Sprintf("m.%d", i)] = m.Clone()
		}
		if v, ok := a.v[param]; ok {
			stateDict[fmt.Sprintf("v.%d", i)] = v.Clone()
		}
	}
	return stateDict
}

// LoadStateDict restores moments and timestep.
func (a *Adam) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	m := make(map[*nn.Parameter]*tensor.RawTensor)
	v := make(map[*nn.Parameter]*tensor.RawTensor)

	for i, param := range a.params {
		for prefix, dst := range map[string]map[*nn.Parameter]*tensor.RawTensor{"m": m, "v": v} {
			key := fmt.Sprintf("%s.%d", prefix, i)
			raw, ok := stateDict[key]
			if !ok {
				continue
			}
			buf, err := loadBuffer(key, raw, param)
			if err != nil {
				return err
			}
			dst[param] = buf
		}
	}

	t := 0
	if raw, ok := stateDict["t"]; ok {
		if raw.NumElements() != 1 {
			return fmt.Errorf("t: expected scalar, got shape %v", raw.Shape())
		}
		t = int(raw.Data()[0])
	}

	a.m, a.v, a.t = m, v, t
	return nil
}
