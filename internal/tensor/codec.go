package tensor

import "github.com/x448/float16"

// Codec converts between a storage element type and the float64 working
// precision. It is resolved once per engine, not per element.
type Codec[T Element] struct {
	DType DataType
	Load  func(T) float64
	Store func(float64) T
}

// CodecFor returns the codec for T.
func CodecFor[T Element]() Codec[T] {
	var load, store any
	switch DataTypeOf[T]() {
	case Float32:
		load = func(v float32) float64 { return float64(v) }
		store = func(v float64) float32 { return float32(v) }
	case Float64:
		load = func(v float64) float64 { return v }
		store = func(v float64) float64 { return v }
	case Float16:
		load = func(v float16.Float16) float64 { return float64(v.Float32()) }
		store = func(v float64) float16.Float16 { return float16.Fromfloat32(float32(v)) }
	case BFloat16Type:
		load = func(v BFloat16) float64 { return v.Float64() }
		store = func(v float64) BFloat16 { return BFloat16FromFloat32(float32(v)) }
	}

	return Codec[T]{
		DType: DataTypeOf[T](),
		Load:  load.(func(T) float64),
		Store: store.(func(float64) T),
	}
}

// FromFloat64 converts a float64 slice into a new slice of T.
func FromFloat64[T Element](src []float64) []T {
	c := CodecFor[T]()
	dst := make([]T, len(src))
	for i, v := range src {
		dst[i] = c.Store(v)
	}
	return dst
}

// ToFloat64 converts a slice of T into a new float64 slice.
func ToFloat64[T Element](src []T) []float64 {
	c := CodecFor[T]()
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = c.Load(v)
	}
	return dst
}
