// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers for the affine parameters of
// normalization layers.
//
// Available optimizers:
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//
// Example:
//
//	optimizer := optim.NewAdam(bn.Parameters(), optim.AdamConfig{LR: 1e-3})
//	for range steps {
//	    // forward, loss, bn.Backward(dy) ...
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim
