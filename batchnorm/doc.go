// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package batchnorm provides batch normalization over 4-D tensors.
//
// # Overview
//
// Batch normalization standardizes activations with statistics taken over
// the mini-batch and applies a learnable affine map:
//
//	y = scale * (x - mean) / sqrt(variance + epsilon) + bias
//
// Two groupings are supported:
//   - PerActivation: one statistics pair per (c, h, w), reduced over N
//   - Spatial: one statistics pair per channel, reduced over N, H and W
//
// Element buffers may be float64, float32, float16 or bfloat16 and be laid
// out NCHW or NHWC; all statistics and accumulations are float64.
//
// # Basic Usage
//
//	eng := batchnorm.New[float32](batchnorm.DefaultConfig())
//	view := tensor.NewView(tensor.Shape{N: 8, C: 16, H: 14, W: 14}, tensor.NCHW)
//	mean, variance := batchnorm.NewRunningStats(16)
//
//	err := eng.ForwardTrain(batchnorm.TrainArgs[float32]{
//	    Mode: batchnorm.Spatial, View: view,
//	    X: x, Scale: gamma, Bias: beta, Y: y,
//	    Epsilon: batchnorm.DefaultEpsilon, Momentum: batchnorm.DefaultMomentum,
//	    RunningMean: mean, RunningVariance: variance,
//	})
//
// See the nn package for a layer that owns its parameters and running
// statistics.
package batchnorm
