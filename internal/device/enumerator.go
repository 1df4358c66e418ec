package device

import (
	"context"
	"fmt"

	"github.com/born-ml/learner/internal/tensor"
)

// Static reports a fixed accelerator count.
type Static int

// Name returns "static".
func (s Static) Name() string { return "static" }

// Count returns the configured count.
func (s Static) Count() (int, error) { return int(s), nil }

type cpuOnly struct{}

// CPUOnly returns an enumerator that sees no accelerators.
func CPUOnly() Enumerator { return cpuOnly{} }

func (cpuOnly) Name() string        { return "cpu" }
func (cpuOnly) Count() (int, error) { return 0, nil }

// builtin holds the accelerator runtimes compiled into this binary, in
// preference order. Build-tagged files register themselves in init.
var builtin []Enumerator

func register(e Enumerator) {
	builtin = append(builtin, e)
}

// Detect returns the first compiled-in enumerator that sees at least one
// accelerator, or CPUOnly.
func Detect() Enumerator {
	for _, e := range builtin {
		if n, err := e.Count(); err == nil && n > 0 {
			return e
		}
	}
	return CPUOnly()
}

// Available lists the compiled-in accelerator runtimes.
func Available() []Enumerator {
	out := make([]Enumerator, len(builtin))
	copy(out, builtin)
	return out
}

// LocalRank assigns accelerator rank % count, the usual layout when each
// node runs one worker per accelerator.
func LocalRank(rank int, enum Enumerator) Assigner {
	return AssignerFunc(func(context.Context) (tensor.Device, error) {
		count, err := enum.Count()
		if err != nil {
			return tensor.Device{}, err
		}
		if count == 0 {
			return tensor.Device{}, fmt.Errorf("%w: no accelerators visible (%s)", ErrInvalidDevice, enum.Name())
		}
		return tensor.Accelerator(rank % count), nil
	})
}

// Fixed always assigns dev.
func Fixed(dev tensor.Device) Assigner {
	return AssignerFunc(func(context.Context) (tensor.Device, error) { return dev, nil })
}
