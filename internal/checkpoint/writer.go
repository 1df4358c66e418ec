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
	"sort"
	"time"

	"github.com/born-ml/learner/internal/tensor"
)

// Write encodes c to w.
func Write(w io.Writer, c *Checkpoint) error {
	header := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     c.CreatedAt,
		Step:          c.Step,
		Modules:       c.Modules,
		Metadata:      c.Metadata,
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Lay out tensors in a deterministic order and collect their data.
	var data []byte
	for _, section := range []struct {
		name    string
		modules map[string]map[string]tensor.Array
	}{
		{sectionWeights, c.Weights},
		{sectionOptimizer, c.Optimizer},
	} {
		for _, module := range sortedKeys(section.modules) {
			arrays := section.modules[module]
			for _, name := range sortedKeys(arrays) {
				arr := arrays[name]
				if tensor.Shape(arr.Shape).NumElements() != len(arr.Data) {
					return fmt.Errorf("%s/%s/%s: %w", section.name, module, name,
						&tensor.ShapeError{Op: "checkpoint", Want: arr.Shape, Got: tensor.Shape{len(arr.Data)}})
				}
				size := int64(len(arr.Data) * bytesPerElement)
				header.Tensors = append(header.Tensors, TensorMeta{
					Section: section.name,
					Module:  module,
					Name:    name,
					Shape:   arr.Shape,
					Offset:  int64(len(data)),
					Size:    size,
				})
				data = appendFloat32s(data, arr.Data)
			}
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	checksum := sha256.Sum256(data)

	fixedHeader := make([]byte, FixedHeaderSize)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))

	flags := uint32(0)
	if len(c.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if len(c.Optimizer) > 0 {
		flags |= FlagHasOptimizer
	}
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(len(data)))
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	currentPos := int64(FixedHeaderSize + len(headerJSON))
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// Save writes c to path, replacing any existing file.
func Save(path string, c *Checkpoint) (err error) {
	//nolint:gosec // G304: checkpoint path is user supplied by design
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", closeErr)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := Write(bw, c); err != nil {
		return err
	}
	return bw.Flush()
}

func appendFloat32s(dst []byte, values []float32) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
