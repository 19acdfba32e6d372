package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("array offsets overlap")
	ErrOutOfBounds        = errors.New("array extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyArrays      = errors.New("too many arrays in file")
	ErrArrayNameTooLong   = errors.New("array name too long")
	ErrInvalidArrayName   = errors.New("invalid array name")
	ErrSizeMismatch       = errors.New("array size does not match its shape")
	ErrUnsupportedDType   = errors.New("unsupported array dtype")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrArrayNotFound      = errors.New("array not found")
)

// ValidationError provides detailed information about validation failures.
// It unwraps to the matching sentinel error.
type ValidationError struct {
	Err     error  // Sentinel error (e.g., ErrOffsetOverlap)
	Array   string // Primary array name involved
	Array2  string // Secondary array name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Array2 != "" {
		return fmt.Sprintf("%v: arrays %q and %q: %s", e.Err, e.Array, e.Array2, e.Details)
	}
	if e.Array != "" {
		return fmt.Sprintf("%v: array %q: %s", e.Err, e.Array, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
