package learner

import (
	"fmt"

	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/weights"
)

// Weights maps module ids to their state in device-independent form.
type Weights map[ModuleID]nn.State

// MarshalBinary encodes w with the msgpack weights codec.
func (w Weights) MarshalBinary() ([]byte, error) {
	return weights.Marshal(w)
}

// UnmarshalBinary decodes a payload produced by MarshalBinary.
func (w *Weights) UnmarshalBinary(b []byte) error {
	decoded, err := weights.Unmarshal(b)
	if err != nil {
		return err
	}
	*w = decoded
	return nil
}

// WeightSynchronizer exports and imports module weights.
type WeightSynchronizer struct {
	modules *ModuleRegistry
}

// NewWeightSynchronizer creates a synchronizer over modules.
func NewWeightSynchronizer(modules *ModuleRegistry) *WeightSynchronizer {
	return &WeightSynchronizer{modules: modules}
}

// GetWeights exports the weights of ids, or of every module when no id is
// given.
func (s *WeightSynchronizer) GetWeights(ids ...ModuleID) (Weights, error) {
	if len(ids) == 0 {
		ids = s.modules.IDs()
	}
	out := make(Weights, len(ids))
	for _, id := range ids {
		m, err := s.modules.Get(id)
		if err != nil {
			return nil, err
		}
		out[id] = m.State()
	}
	return out, nil
}

// SetWeights writes w onto the registered modules, converting each array
// to a tensor on the module's device.
//
// Every id is checked before anything is written. If a module rejects its
// state (ErrShapeMismatch, unknown parameter), modules already written are
// restored to their previous values.
func (s *WeightSynchronizer) SetWeights(w Weights) error {
	targets := make(map[ModuleID]nn.Module, len(w))
	for id := range w {
		m, err := s.modules.Get(id)
		if err != nil {
			return err
		}
		targets[id] = m
	}

	backups := make(map[ModuleID]nn.State, len(w))
	for _, id := range s.modules.IDs() {
		state, ok := w[id]
		m := targets[id]
		if !ok || m == nil {
			continue
		}
		backup := m.State()
		if err := m.SetState(state); err != nil {
			for done, prev := range backups {
				_ = targets[done].SetState(prev)
			}
			return fmt.Errorf("set weights of %q: %w", id, err)
		}
		backups[id] = backup
	}
	return nil
}
