package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"time"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2    // v2: fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Array data starts on a 64-byte boundary
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// DTypeFloat64 is the only array dtype a checkpoint carries.
const DTypeFloat64 = "float64"

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
	FlagHasLayer     uint32 = 1 << 3 // bit 3: layer description included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .born format
	ToolVersion    string            `json:"tool_version"`         // Version of bnorm that created this file
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Arrays         []ArrayMeta       `json:"arrays"`               // Array metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	Layer          *LayerMeta        `json:"layer,omitempty"`      // Layer that produced the arrays
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state (optional)
}

// LayerMeta describes the normalization layer a checkpoint belongs to.
type LayerMeta struct {
	Mode        string  `json:"mode"`         // "per-activation" or "spatial"
	NumFeatures int     `json:"num_features"` // Number of normalization groups
	Epsilon     float64 `json:"epsilon"`
	Momentum    float64 `json:"momentum"`
	DType       string  `json:"dtype"`  // Storage type of the layer (e.g., "float16")
	Layout      string  `json:"layout"` // Layout the layer was trained on
	Shape       []int   `json:"shape"`  // N, C, H, W of the training batches
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch           int            `json:"epoch"`            // Training epoch number
	Step            int64          `json:"step"`             // Training step number
	Loss            float64        `json:"loss"`             // Loss value at checkpoint
	OptimizerType   string         `json:"optimizer_type"`   // Optimizer type ("SGD", "Adam")
	OptimizerConfig map[string]any `json:"optimizer_config"` // Optimizer hyperparameters
}

// ArrayMeta describes an array in the .born file.
type ArrayMeta struct {
	Name   string `json:"name"`   // Array name (e.g., "bn.running_mean")
	DType  string `json:"dtype"`  // Always "float64"
	Shape  []int  `json:"shape"`  // Array shape
	Offset int64  `json:"offset"` // Offset in the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// NumElements returns the element count implied by the shape.
func (m ArrayMeta) NumElements() int64 {
	n := int64(1)
	for _, d := range m.Shape {
		n *= int64(d)
	}
	return n
}

// ComputeChecksum computes SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// alignedDataOffset returns where array data begins for a JSON header of
// headerSize bytes.
func alignedDataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}

// float64Bytes is the little-endian encoding of values.
func float64Bytes(values []float64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}
