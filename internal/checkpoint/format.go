// Package checkpoint reads and writes learner checkpoint files.
//
// File layout (all integers little endian):
//
//	0x00-0x03  magic "BLRN"
//	0x04-0x07  format version
//	0x08-0x0B  flags
//	0x0C-0x0F  reserved
//	0x10-0x17  header size
//	0x18-0x1F  data size
//	0x20-0x3F  SHA-256 of the data section
//	0x40-      JSON header, zero padded to a 64-byte boundary
//	           tensor data, float32 values back to back
package checkpoint

import (
	"time"

	"github.com/born-ml/learner/internal/tensor"
)

// Format constants.
const (
	MagicBytes       = "BLRN"
	FormatVersion    = 1
	HeaderAlignment  = 64 // Align tensor data to 64 bytes
	FixedHeaderSize  = 64 // Fixed header size (0x40 bytes)
	ChecksumSize     = 32 // SHA-256 checksum size (32 bytes)
	ChecksumOffset   = 0x20
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensors       = 1 << 20
	bytesPerElement  = 4
	sectionWeights   = "weights"
	sectionOptimizer = "optimizer"
)

// Flags for the checkpoint format.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata included
)

// Checkpoint is a training state snapshot: module weights, optimizer state
// and step metadata.
type Checkpoint struct {
	Step      int64
	CreatedAt time.Time
	Modules   []string          // Module ids in registry order
	Metadata  map[string]string // Custom metadata

	// Weights maps module id to parameter name to values.
	Weights map[string]map[string]tensor.Array
	// Optimizer maps module id to optimizer state key to values.
	Optimizer map[string]map[string]tensor.Array
}

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Step          int64             `json:"step"`
	Modules       []string          `json:"modules"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Section string `json:"section"` // "weights" or "optimizer"
	Module  string `json:"module"`
	Name    string `json:"name"`
	Shape   []int  `json:"shape"`
	Offset  int64  `json:"offset"` // Bytes from start of tensor data
	Size    int64  `json:"size"`   // Size in bytes
}
