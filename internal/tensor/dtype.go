// Package tensor provides the storage types and the strided 4-D view the
// batch-normalization engine operates on.
package tensor

import "github.com/x448/float16"

// Element is a constraint for supported storage element types.
// Accumulation always happens in float64 regardless of T.
type Element interface {
	float32 | float64 | float16.Float16 | BFloat16
}

// DataType represents runtime type information for element buffers.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Float16
	BFloat16Type
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float16, BFloat16Type:
		return 2
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case BFloat16Type:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "float32", "fp32":
		return Float32, true
	case "float64", "fp64":
		return Float64, true
	case "float16", "fp16", "half":
		return Float16, true
	case "bfloat16", "bf16":
		return BFloat16Type, true
	default:
		return 0, false
	}
}

// DataTypeOf infers the DataType of a generic element type.
func DataTypeOf[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case float16.Float16:
		return Float16
	case BFloat16:
		return BFloat16Type
	default:
		panic("unsupported type")
	}
}
