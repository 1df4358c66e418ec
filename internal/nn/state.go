package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/learner/internal/tensor"
)

// ErrUnknownParameter is returned when a state entry names no parameter.
var ErrUnknownParameter = errors.New("unknown parameter")

// State maps qualified parameter names to device-independent arrays.
type State map[string]tensor.Array

// paramState exports params keyed by prefix+name.
func paramState(prefix string, params []*Parameter, s State) {
	for _, p := range params {
		s[prefix+p.Name()] = p.Tensor().ToArray()
	}
}

// setParamState validates every entry of s addressed to params before
// writing any of them onto device.
func setParamState(params []*Parameter, s State, device tensor.Device) error {
	byName := make(map[string]*Parameter, len(params))
	for _, p := range params {
		byName[p.Name()] = p
	}

	staged := make(map[*Parameter]*tensor.RawTensor, len(s))
	for name, arr := range s {
		p, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
		src, err := tensor.FromArray(arr, device)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
		if !src.Shape().Equal(p.Shape()) {
			return fmt.Errorf("parameter %q: %w", name,
				&tensor.ShapeError{Op: "set state", Want: p.Shape(), Got: src.Shape()})
		}
		staged[p] = src
	}

	for p, src := range staged {
		if err := p.Tensor().CopyFrom(src); err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name(), err)
		}
	}
	return nil
}

// moveParams relocates params to device and empties their gradient slots.
func moveParams(params []*Parameter, device tensor.Device) {
	for _, p := range params {
		p.Tensor().Relocate(device)
		p.ZeroGrad()
	}
}
