// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/bnorm/internal/tensor"

// Element is the constraint for supported storage element types.
type Element = tensor.Element

// DataType represents runtime type information for element buffers.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32      = tensor.Float32
	Float64      = tensor.Float64
	Float16      = tensor.Float16
	BFloat16Type = tensor.BFloat16Type
)

// BFloat16 is a brain floating point number.
type BFloat16 = tensor.BFloat16

// BFloat16FromFloat32 rounds f to the nearest bfloat16.
func BFloat16FromFloat32(f float32) BFloat16 {
	return tensor.BFloat16FromFloat32(f)
}

// Codec converts elements of type T to and from float64.
type Codec[T Element] = tensor.Codec[T]

// CodecFor returns the codec of T.
func CodecFor[T Element]() Codec[T] {
	return tensor.CodecFor[T]()
}

// FromFloat64 converts src to element type T.
func FromFloat64[T Element](src []float64) []T {
	return tensor.FromFloat64[T](src)
}

// ToFloat64 widens src to float64.
func ToFloat64[T Element](src []T) []float64 {
	return tensor.ToFloat64(src)
}

// Layout is the physical ordering of the four logical dimensions.
type Layout = tensor.Layout

// Supported layouts.
const (
	NCHW = tensor.NCHW
	NHWC = tensor.NHWC
)

// Shape is the logical (N, C, H, W) extent of a 4-D tensor.
type Shape = tensor.Shape

// View is a Shape with per-dimension strides.
type View = tensor.View

// NewView returns the dense view of s in layout.
func NewView(s Shape, layout Layout) View {
	return tensor.NewView(s, layout)
}

// ErrInvalidShape is returned for views with a non-positive dimension.
var ErrInvalidShape = tensor.ErrInvalidShape
