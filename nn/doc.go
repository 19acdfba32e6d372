// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers built on the batch
// normalization engine.
//
// # Overview
//
// BatchNorm owns its affine parameters (gamma, beta) and running
// statistics, switches between training and inference with Train/Eval and
// exposes its state for checkpoints:
//
//	bn := nn.NewBatchNorm[float32](nn.DefaultBatchNormConfig(16))
//	y, err := bn.Forward(x, view)
//	dx, err := bn.Backward(dy)
//	state := bn.StateDict()
package nn
