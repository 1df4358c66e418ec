package weights

import (
	"testing"

	"github.com/born-ml/learner/internal/nn"
	"github.com/born-ml/learner/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestMarshalUnmarshal(t *testing.T) {
	in := map[string]nn.State{
		"policy_0": {
			"weight": {Shape: []int{1, 2}, Data: []float32{0.5, -1}},
			"bias":   {Shape: []int{1}, Data: []float32{2}},
		},
		"policy_1/critic": {
			"value": {Shape: []int{3}, Data: []float32{1, 2, 3}},
		},
	}

	b, err := Marshal(in)
	require.NoError(t, err)

	out, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMarshal_RejectsInconsistentArray(t *testing.T) {
	_, err := Marshal(map[string]nn.State{
		"m": {"w": {Shape: []int{2, 2}, Data: []float32{1}}},
	})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestUnmarshal_Version(t *testing.T) {
	b, err := msgpack.Marshal(&envelope{Version: Version + 1})
	require.NoError(t, err)

	_, err = Unmarshal(b)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestUnmarshal_Garbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xc1})
	assert.Error(t, err)
}

func TestUnmarshal_Empty(t *testing.T) {
	b, err := Marshal(nil)
	require.NoError(t, err)

	out, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Empty(t, out)
}
