package nn

import "github.com/born-ml/bnorm/internal/tensor"

// Zeros returns n zeros of type T.
//
// This is commonly used for bias initialization.
func Zeros[T tensor.Element](n int) []T {
	return make([]T, n)
}

// Ones returns n ones of type T.
//
// This is commonly used for scale (gamma) initialization.
func Ones[T tensor.Element](n int) []T {
	return Full[T](n, 1)
}

// Full returns n copies of v converted to T.
func Full[T tensor.Element](n int, v float64) []T {
	c := tensor.CodecFor[T]()
	out := make([]T, n)
	fill := c.Store(v)
	for i := range out {
		out[i] = fill
	}
	return out
}
