package learner

import (
	"fmt"

	"github.com/born-ml/learner/internal/tensor"
)

// SampleBatch holds the columns of one module's training batch.
type SampleBatch map[string]tensor.Array

// MultiAgentBatch holds one SampleBatch per module.
type MultiAgentBatch map[ModuleID]SampleBatch

// NativeBatch is a MultiAgentBatch converted to tensors.
type NativeBatch map[ModuleID]map[string]*tensor.RawTensor

// Column returns column name of module id, or nil.
func (b NativeBatch) Column(id ModuleID, name string) *tensor.RawTensor {
	return b[id][name]
}

// ConvertBatch converts batch to tensors on device. A column whose data
// length disagrees with its shape fails with ErrShapeMismatch.
func ConvertBatch(batch MultiAgentBatch, device tensor.Device) (NativeBatch, error) {
	out := make(NativeBatch, len(batch))
	for id, columns := range batch {
		native := make(map[string]*tensor.RawTensor, len(columns))
		for name, arr := range columns {
			t, err := tensor.FromArray(arr, device)
			if err != nil {
				return nil, fmt.Errorf("batch %q column %q: %w", id, name, err)
			}
			native[name] = t
		}
		out[id] = native
	}
	return out, nil
}
