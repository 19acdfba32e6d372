package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize   = 16 * 1024 * 1024 // 16MB - maximum header size
	MaxArrayCount   = 10_000           // Maximum number of arrays in a file
	MaxArrayNameLen = 1024             // Maximum array name length
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names, dtypes and sizes but not offsets.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateArrayOffsets checks for overlapping array regions and
// out-of-bounds access.
func ValidateArrayOffsets(arrays []ArrayMeta, dataSize int64) error {
	if len(arrays) > MaxArrayCount {
		return &ValidationError{
			Err:     ErrTooManyArrays,
			Details: fmt.Sprintf("got %d, max %d", len(arrays), MaxArrayCount),
		}
	}

	sorted := slices.Clone(arrays)
	slices.SortFunc(sorted, func(a, b ArrayMeta) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	for i, a := range sorted {
		if a.Offset < 0 || a.Size < 0 {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Array:   a.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", a.Offset, a.Size),
			}
		}
		if !inBounds(a.Offset, a.Size, dataSize) {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Array:   a.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", a.Offset, a.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if a.Offset+a.Size > next.Offset {
				return &ValidationError{
					Err:    ErrOffsetOverlap,
					Array:  a.Name,
					Array2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						a.Offset, a.Offset+a.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// inBounds reports whether [offset, offset+size) lies within [0, limit).
// It never computes offset+size, which may overflow for hostile headers.
func inBounds(offset, size, limit int64) bool {
	return offset >= 0 && size >= 0 && size <= limit && offset <= limit-size
}

// ValidateArrayName rejects names with path separators, traversal
// sequences or null bytes.
func ValidateArrayName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Err: ErrInvalidArrayName, Details: "empty name"}
	case len(name) > MaxArrayNameLen:
		return &ValidationError{
			Err:     ErrArrayNameTooLong,
			Array:   name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxArrayNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Err: ErrInvalidArrayName, Array: name, Details: "contains '..'"}
	case strings.ContainsAny(name, `/\`):
		return &ValidationError{Err: ErrInvalidArrayName, Array: name, Details: "contains path separator"}
	case strings.ContainsRune(name, 0):
		return &ValidationError{Err: ErrInvalidArrayName, Array: name, Details: "contains null byte"}
	}
	return nil
}

// ValidateHeader performs header validation at the given level.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(h.Arrays) > MaxArrayCount {
		return &ValidationError{
			Err:     ErrTooManyArrays,
			Details: fmt.Sprintf("got %d, max %d", len(h.Arrays), MaxArrayCount),
		}
	}

	for _, a := range h.Arrays {
		if err := ValidateArrayName(a.Name); err != nil {
			return err
		}
		if a.DType != DTypeFloat64 {
			return &ValidationError{Err: ErrUnsupportedDType, Array: a.Name, Details: a.DType}
		}
		if want := a.NumElements() * 8; a.Size != want {
			return &ValidationError{
				Err:     ErrSizeMismatch,
				Array:   a.Name,
				Details: fmt.Sprintf("size %d, shape %v needs %d", a.Size, a.Shape, want),
			}
		}
	}

	if level == ValidationStrict {
		return ValidateArrayOffsets(h.Arrays, dataSize)
	}
	return nil
}
