package nn

import (
	"fmt"

	"github.com/born-ml/learner/internal/tensor"
)

// Value is a leaf module holding a single free parameter. Its forward pass
// ignores the input and returns the parameter itself, which makes it the
// natural building block for directly optimized quantities (quadratic
// objectives, learned scalars such as an entropy coefficient).
type Value struct {
	param  *Parameter
	device tensor.Device
}

// NewValue creates a Value initialized with data reshaped to shape.
func NewValue(name string, data []float32, shape tensor.Shape) (*Value, error) {
	t, err := tensor.FromSlice(data, shape, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("value %q: %w", name, err)
	}
	return &Value{param: NewParameter(name, t), device: tensor.CPU}, nil
}

// Forward returns the parameter tensor.
func (v *Value) Forward(_ tensor.Backend, _ *tensor.RawTensor) *tensor.RawTensor {
	return v.param.Tensor()
}

// Param returns the underlying parameter.
func (v *Value) Param() *Parameter { return v.param }

// Kind returns KindSingleAgent.
func (v *Value) Kind() Kind { return KindSingleAgent }

// Parameters returns the single parameter.
func (v *Value) Parameters() []*Parameter { return []*Parameter{v.param} }

// To moves the value to device and empties its gradient slot.
func (v *Value) To(device tensor.Device) error {
	moveParams(v.Parameters(), device)
	v.device = device
	return nil
}

// Device returns the value's device.
func (v *Value) Device() tensor.Device { return v.device }

// State exports the parameter.
func (v *Value) State() State {
	s := make(State, 1)
	paramState("", v.Parameters(), s)
	return s
}

// SetState overwrites the parameter.
func (v *Value) SetState(s State) error {
	return setParamState(v.Parameters(), s, v.device)
}
