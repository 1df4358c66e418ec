package checkpoint

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/learner/internal/tensor"
)

// Read decodes a checkpoint from r and verifies its checksum.
func Read(r io.Reader) (*Checkpoint, error) {
	fixedHeader := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixedHeader); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixedHeader[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixedHeader[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	headerSize := binary.LittleEndian.Uint64(fixedHeader[16:24])
	dataSize := binary.LittleEndian.Uint64(fixedHeader[24:32])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	var stored [ChecksumSize]byte
	copy(stored[:], fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if len(header.Tensors) > MaxTensors {
		return nil, ErrTooManyTensors
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(dataSize))) //nolint:gosec // G115: bounded by file size
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if uint64(len(data)) != dataSize {
		return nil, fmt.Errorf("%w: data section truncated (%d of %d bytes)", ErrOutOfBounds, len(data), dataSize)
	}
	if sha256.Sum256(data) != stored {
		return nil, ErrChecksumMismatch
	}

	c := &Checkpoint{
		Step:      header.Step,
		CreatedAt: header.CreatedAt,
		Modules:   header.Modules,
		Metadata:  header.Metadata,
		Weights:   make(map[string]map[string]tensor.Array),
		Optimizer: make(map[string]map[string]tensor.Array),
	}

	for _, meta := range header.Tensors {
		arr, err := decodeTensor(meta, data)
		if err != nil {
			return nil, err
		}
		var dst map[string]map[string]tensor.Array
		switch meta.Section {
		case sectionWeights:
			dst = c.Weights
		case sectionOptimizer:
			dst = c.Optimizer
		default:
			return nil, fmt.Errorf("tensor %q: unknown section %q", meta.Name, meta.Section)
		}
		if dst[meta.Module] == nil {
			dst[meta.Module] = make(map[string]tensor.Array)
		}
		dst[meta.Module][meta.Name] = arr
	}
	return c, nil
}

// Load reads the checkpoint stored at path.
func Load(path string) (*Checkpoint, error) {
	//nolint:gosec // G304: checkpoint path is user supplied by design
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Read(bufio.NewReader(file))
}

func decodeTensor(meta TensorMeta, data []byte) (tensor.Array, error) {
	where := fmt.Sprintf("%s/%s/%s", meta.Section, meta.Module, meta.Name)
	if err := tensor.Shape(meta.Shape).Validate(); err != nil {
		return tensor.Array{}, fmt.Errorf("%w: %s: %w", ErrInvalidShape, where, err)
	}

	// Bound the element count by the data section before multiplying further.
	limit := len(data) / bytesPerElement
	n := 1
	for _, dim := range meta.Shape {
		if dim > limit/n {
			return tensor.Array{}, fmt.Errorf("%w: %s", ErrOutOfBounds, where)
		}
		n *= dim
	}

	size := int64(n * bytesPerElement)
	if meta.Size != size || meta.Offset < 0 || meta.Offset > int64(len(data))-size {
		return tensor.Array{}, fmt.Errorf("%w: %s", ErrOutOfBounds, where)
	}

	values := make([]float32, n)
	buf := data[meta.Offset : meta.Offset+size]
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerElement:]))
	}
	return tensor.Array{Shape: meta.Shape, Data: values}, nil
}
