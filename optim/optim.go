// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/bnorm/internal/nn"
	"github.com/born-ml/bnorm/internal/optim"
	"github.com/born-ml/bnorm/internal/tensor"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD[T tensor.Element] = optim.SGD[T]

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	bn := nn.NewBatchNorm[float32](nn.DefaultBatchNormConfig(16))
//	optimizer := optim.NewSGD(bn.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
func NewSGD[T tensor.Element](params []*nn.Parameter[T], config SGDConfig) *SGD[T] {
	return optim.NewSGD(params, config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam[T tensor.Element] = optim.Adam[T]

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
func NewAdam[T tensor.Element](params []*nn.Parameter[T], config AdamConfig) *Adam[T] {
	return optim.NewAdam(params, config)
}
