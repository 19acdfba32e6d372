package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReaderOptions configures how a checkpoint is decoded.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level (default: strict)
}

// Checkpoint is a decoded .born file.
type Checkpoint struct {
	Header Header
	Flags  uint32
	Arrays map[string][]float64
}

// Array returns the named array.
func (c *Checkpoint) Array(name string) ([]float64, error) {
	a, ok := c.Arrays[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrArrayNotFound, name)
	}
	return a, nil
}

// Names returns the array names in file order.
func (c *Checkpoint) Names() []string {
	names := make([]string, len(c.Header.Arrays))
	for i, m := range c.Header.Arrays {
		names[i] = m.Name
	}
	return names
}

// Read decodes a v2 .born file from r.
func Read(r io.Reader, opts ReaderOptions) (*Checkpoint, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return decode(raw, opts)
}

// ReadFile decodes the .born file at path.
func ReadFile(path string, opts ReaderOptions) (*Checkpoint, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoints
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return decode(raw, opts)
}

func decode(raw []byte, opts ReaderOptions) (*Checkpoint, error) {
	if len(raw) < FixedHeaderSize {
		return nil, fmt.Errorf("%w: file is %d bytes", ErrInvalidMagic, len(raw))
	}
	if string(raw[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(raw[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}

	ckpt := &Checkpoint{Flags: binary.LittleEndian.Uint32(raw[8:12])}
	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataSize := binary.LittleEndian.Uint64(raw[24:32])
	var stored [32]byte
	copy(stored[:], raw[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	hdrEnd := FixedHeaderSize + int64(headerSize)
	if hdrEnd > int64(len(raw)) {
		return nil, fmt.Errorf("%w: header runs past end of file", ErrOutOfBounds)
	}
	if err := json.Unmarshal(raw[FixedHeaderSize:hdrEnd], &ckpt.Header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	dataOffset := alignedDataOffset(int64(headerSize))
	if dataOffset > int64(len(raw)) || dataSize > uint64(int64(len(raw))-dataOffset) {
		return nil, fmt.Errorf("%w: data section of %d bytes", ErrOutOfBounds, dataSize)
	}
	data := raw[dataOffset : dataOffset+int64(dataSize)]

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
			return nil, err
		}
	}
	if err := ValidateHeader(&ckpt.Header, int64(len(data)), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	ckpt.Arrays = make(map[string][]float64, len(ckpt.Header.Arrays))
	for _, m := range ckpt.Header.Arrays {
		if !inBounds(m.Offset, m.Size, int64(len(data))) {
			return nil, &ValidationError{Err: ErrOutOfBounds, Array: m.Name, Details: "region outside data section"}
		}
		values := make([]float64, m.Size/8)
		if err := binary.Read(bytes.NewReader(data[m.Offset:m.Offset+m.Size]), binary.LittleEndian, values); err != nil {
			return nil, fmt.Errorf("failed to read array %s: %w", m.Name, err)
		}
		ckpt.Arrays[m.Name] = values
	}
	return ckpt, nil
}
