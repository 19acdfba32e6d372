// Package batchnorm implements the batch-normalization compute engine.
//
// The engine computes per-group statistics over a mini-batch of 4-D
// tensors, normalizes the input against them, maintains running statistics
// for inference and computes the gradients needed for training.
//
// # Modes
//
// A Mode selects how elements are grouped for reduction:
//   - PerActivation: one mean/variance pair per (c, h, w), reduced over N.
//   - Spatial: one pair per channel c, reduced over N, H and W.
//
// Both modes share one implementation parameterized by a Grouping, which
// maps a group id to the buffer offsets of its members.
//
// # Phases
//
// Every operation runs in two phases separated by a barrier. Forward:
// phase 1 (Moments) computes mean and variance for every group with two
// passes over the group (sum, then centered sum of squares); phase 2
// (Normalize) writes scale*(x-mean)*invStd + bias. Backward: pass 1
// accumulates dbias, dscale and the intermediate sums while caching xhat;
// pass 2 writes dx from the closed form.
//
// # Buffers
//
// All buffers are caller-owned. Element buffers (x, y, dy, dx, scale, bias)
// use the storage type T; statistics, running statistics and parameter
// gradients are float64, and all accumulation is done in float64.
// Optional outputs are enabled by passing non-nil buffers.
//
// Example:
//
//	eng := batchnorm.New[float32](batchnorm.DefaultConfig())
//	view := tensor.NewView(tensor.Shape{N: 8, C: 16, H: 14, W: 14}, tensor.NCHW)
//	groups := batchnorm.NumGroups(batchnorm.Spatial, view)
//	runMean, runVar := batchnorm.NewRunningStats(groups)
//	err := eng.ForwardTrain(batchnorm.TrainArgs[float32]{
//	    Mode: batchnorm.Spatial, View: view,
//	    X: x, Scale: gamma, Bias: beta, Y: y,
//	    Epsilon: 1e-5, Momentum: 0.1,
//	    RunningMean: runMean, RunningVariance: runVar,
//	})
package batchnorm
