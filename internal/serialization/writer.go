package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/samber/lo"
)

// ToolVersion is recorded in every header this package writes.
const ToolVersion = "0.3.0"

// Write encodes arrays into w as a v2 .born file.
//
// Arrays are laid out in name order, each as a 1-D float64 array. The
// FormatVersion, ToolVersion, CreatedAt and Arrays fields of header are
// filled in by Write.
func Write(w io.Writer, arrays map[string][]float64, header Header) error {
	names := lo.Keys(arrays)
	slices.Sort(names)

	header.FormatVersion = FormatVersion
	header.ToolVersion = ToolVersion
	header.CreatedAt = time.Now().UTC()
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var data bytes.Buffer
	header.Arrays = make([]ArrayMeta, 0, len(names))
	for _, name := range names {
		if err := ValidateArrayName(name); err != nil {
			return err
		}
		values := arrays[name]
		header.Arrays = append(header.Arrays, ArrayMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int{len(values)},
			Offset: int64(data.Len()),
			Size:   int64(len(values) * 8),
		})
		data.Write(float64Bytes(values))
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	headerSize := int64(len(headerJSON))

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], headerFlags(&header))
	// 0x0C-0x0F reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(headerSize))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	checksum := ComputeChecksum(data.Bytes())
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}
	padding := alignedDataOffset(headerSize) - FixedHeaderSize - headerSize
	if padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write array data: %w", err)
	}
	return nil
}

// WriteFile writes arrays to a .born file at path.
func WriteFile(path string, arrays map[string][]float64, header Header) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoints
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(file, arrays, header); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func headerFlags(h *Header) uint32 {
	var flags uint32
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if h.CheckpointMeta != nil && h.CheckpointMeta.OptimizerType != "" {
		flags |= FlagHasOptimizer
	}
	if h.Layer != nil {
		flags |= FlagHasLayer
	}
	return flags
}
