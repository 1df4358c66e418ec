package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/born-ml/learner/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Checkpoint {
	return &Checkpoint{
		Step:      42,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Modules:   []string{"policy_1", "policy_0"},
		Metadata:  map[string]string{"run": "test"},
		Weights: map[string]map[string]tensor.Array{
			"policy_1": {
				"weight": {Shape: []int{2, 2}, Data: []float32{1, -2, 3.5, 4}},
				"bias":   {Shape: []int{2}, Data: []float32{0.25, 0}},
			},
			"policy_0": {
				"value": {Shape: []int{}, Data: []float32{7}},
			},
		},
		Optimizer: map[string]map[string]tensor.Array{
			"policy_1": {"0/t": {Shape: []int{}, Data: []float32{3}}},
		},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample()))
	assert.Equal(t, MagicBytes, string(buf.Bytes()[:4]))

	got, err := Read(&buf)
	require.NoError(t, err)

	want := sample()
	assert.Equal(t, want.Step, got.Step)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.Modules, got.Modules)
	assert.Equal(t, want.Metadata, got.Metadata)
	assert.Equal(t, want.Weights, got.Weights)
	assert.Equal(t, want.Optimizer, got.Optimizer)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.blrn")
	require.NoError(t, Save(path, sample()))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Step)
	assert.Equal(t, []float32{1, -2, 3.5, 4}, got.Weights["policy_1"]["weight"].Data)
}

func TestRead_DataAligned(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample()))

	// 8 weight/optimizer values of 4 bytes each follow the aligned header.
	dataStart := buf.Len() - 8*bytesPerElement
	assert.Zero(t, dataStart%HeaderAlignment)
}

func TestRead_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample()))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(corrupted))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestRead_InvalidMagic(t *testing.T) {
	_, err := Read(bytes.NewReader(make([]byte, FixedHeaderSize)))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestWrite_RejectsBadArray(t *testing.T) {
	c := &Checkpoint{Weights: map[string]map[string]tensor.Array{
		"m": {"w": {Shape: []int{3}, Data: []float32{1}}},
	}}
	err := Write(&bytes.Buffer{}, c)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

// craft assembles a file by hand so the header can describe tensors the
// writer would never produce. The checksum is valid for data.
func craft(t *testing.T, tensors []TensorMeta, data []byte) []byte {
	t.Helper()
	headerJSON, err := json.Marshal(Header{FormatVersion: FormatVersion, Tensors: tensors})
	require.NoError(t, err)

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed, MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	sum := sha256.Sum256(data)
	copy(fixed[ChecksumOffset:], sum[:])

	out := append(fixed, headerJSON...)
	for len(out)%HeaderAlignment != 0 {
		out = append(out, 0)
	}
	return append(out, data...)
}

func TestRead_RejectsCraftedTensors(t *testing.T) {
	tests := []struct {
		name string
		meta TensorMeta
		data []byte
		want error
	}{
		{
			name: "negative dimension",
			meta: TensorMeta{Section: sectionWeights, Module: "m", Name: "w", Shape: []int{-1}, Size: -4},
			want: ErrInvalidShape,
		},
		{
			name: "zero dimension",
			meta: TensorMeta{Section: sectionWeights, Module: "m", Name: "w", Shape: []int{0}},
			want: ErrInvalidShape,
		},
		{
			name: "overflowing element count",
			meta: TensorMeta{Section: sectionWeights, Module: "m", Name: "w", Shape: []int{1 << 40, 1 << 40}, Size: 0},
			data: make([]byte, 8),
			want: ErrOutOfBounds,
		},
		{
			name: "offset past data",
			meta: TensorMeta{Section: sectionWeights, Module: "m", Name: "w", Shape: []int{2}, Offset: 4, Size: 8},
			data: make([]byte, 8),
			want: ErrOutOfBounds,
		},
		{
			name: "huge offset",
			meta: TensorMeta{Section: sectionWeights, Module: "m", Name: "w", Shape: []int{1}, Offset: 1<<63 - 1, Size: 4},
			data: make([]byte, 4),
			want: ErrOutOfBounds,
		},
		{
			name: "scalar without data",
			meta: TensorMeta{Section: sectionWeights, Module: "m", Name: "w", Shape: []int{}, Size: 4},
			want: ErrOutOfBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := craft(t, []TensorMeta{tt.meta}, tt.data)
			require.NotPanics(t, func() {
				_, err := Read(bytes.NewReader(file))
				assert.ErrorIs(t, err, tt.want)
			})
		})
	}
}

func TestRead_CraftedValidTensor(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[4:], 0x3F800000) // 1.0
	file := craft(t, []TensorMeta{
		{Section: sectionWeights, Module: "m", Name: "w", Shape: []int{1}, Offset: 4, Size: 4},
	}, data)

	got, err := Read(bytes.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, got.Weights["m"]["w"].Data)
}
