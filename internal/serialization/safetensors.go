package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/samber/lo"
)

// SafeTensorHeader represents an array in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors exports arrays as 1-D F64 tensors in SafeTensors format,
// the interchange format most frameworks can import statistics from.
//
// Format:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw bytes]
//
// Arrays are written in alphabetical order by name.
func WriteSafeTensors(w io.Writer, arrays map[string][]float64, metadata map[string]string) error {
	names := lo.Keys(arrays)
	slices.Sort(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}
	var offset int64
	for _, name := range names {
		size := int64(len(arrays[name]) * 8)
		header[name] = SafeTensorHeader{
			DType:       "F64",
			Shape:       []int64{int64(len(arrays[name]))},
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := w.Write(float64Bytes(arrays[name])); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// WriteSafeTensorsFile writes a SafeTensors file at path.
func WriteSafeTensorsFile(path string, arrays map[string][]float64, metadata map[string]string) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for exports
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteSafeTensors(file, arrays, metadata); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
