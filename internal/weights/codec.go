// Package weights encodes module weights for transfer between processes.
//
// The wire form is a msgpack envelope carrying a format version and the
// per-module state in its device-independent form, so a payload produced
// by one worker can be applied on another regardless of device.
package weights

import (
	"errors"
	"fmt"

	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
	"github.com/vmihailenco/msgpack/v5"
)

// Version is the current envelope version.
const Version = 1

// ErrUnsupportedVersion is returned for payloads written by a newer codec.
var ErrUnsupportedVersion = errors.New("unsupported weights version")

type envelope struct {
	Version int                 `msgpack:"v"`
	Modules map[string]nn.State `msgpack:"modules"`
}

// Marshal encodes w.
func Marshal(w map[string]nn.State) ([]byte, error) {
	for id, state := range w {
		if err := validate(id, state); err != nil {
			return nil, err
		}
	}
	b, err := msgpack.Marshal(&envelope{Version: Version, Modules: w})
	if err != nil {
		return nil, fmt.Errorf("encode weights: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a payload produced by Marshal.
func Unmarshal(b []byte) (map[string]nn.State, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if env.Modules == nil {
		env.Modules = make(map[string]nn.State)
	}
	for id, state := range env.Modules {
		if err := validate(id, state); err != nil {
			return nil, err
		}
	}
	return env.Modules, nil
}

func validate(id string, state nn.State) error {
	for name, arr := range state {
		if arr.NumElements() != len(arr.Data) {
			return fmt.Errorf("module %q parameter %q: %w", id, name,
				&tensor.ShapeError{Op: "weights", Want: arr.Shape, Got: tensor.Shape{len(arr.Data)}})
		}
	}
	return nil
}
