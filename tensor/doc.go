// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the element types and strided 4-D views the
// batch normalization engine operates on.
//
// # Views
//
// A View pairs a logical Shape (N, C, H, W) with one stride per dimension,
// so the same logical tensor can live in NCHW or NHWC memory:
//
//	view := tensor.NewView(tensor.Shape{N: 8, C: 3, H: 32, W: 32}, tensor.NHWC)
//	off := view.Offset(n, c, h, w)
//
// # Element Types
//
// float64, float32, float16.Float16 and BFloat16 buffers are supported.
// A Codec converts elements to and from float64, the precision every
// reduction runs in.
package tensor
