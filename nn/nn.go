// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/bnorm/internal/nn"
	"github.com/born-ml/bnorm/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[T tensor.Element] = nn.Module[T]

// Parameter represents a trainable parameter in a neural network.
type Parameter[T tensor.Element] = nn.Parameter[T]

// NewParameter creates a new parameter with the given name and values.
func NewParameter[T tensor.Element](name string, data []T) *Parameter[T] {
	return nn.NewParameter(name, data)
}

// BatchNorm represents a batch normalization layer.
type BatchNorm[T tensor.Element] = nn.BatchNorm[T]

// BatchNormConfig configures a BatchNorm layer.
type BatchNormConfig = nn.BatchNormConfig

// DefaultBatchNormConfig returns a spatial configuration over numFeatures
// channels with running statistics tracked.
func DefaultBatchNormConfig(numFeatures int) BatchNormConfig {
	return nn.DefaultBatchNormConfig(numFeatures)
}

// NewBatchNorm creates a BatchNorm layer in training mode.
//
// Example:
//
//	bn := nn.NewBatchNorm[float32](nn.DefaultBatchNormConfig(64))
func NewBatchNorm[T tensor.Element](cfg BatchNormConfig) *BatchNorm[T] {
	return nn.NewBatchNorm[T](cfg)
}

// Loss functions

// MSELoss represents Mean Squared Error loss.
type MSELoss[T tensor.Element] = nn.MSELoss[T]

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[T tensor.Element]() *MSELoss[T] {
	return nn.NewMSELoss[T]()
}

// Initialization

// Zeros returns n zeros of type T.
func Zeros[T tensor.Element](n int) []T {
	return nn.Zeros[T](n)
}

// Ones returns n ones of type T.
func Ones[T tensor.Element](n int) []T {
	return nn.Ones[T](n)
}

// Errors
var (
	ErrFeatureMismatch = nn.ErrFeatureMismatch
	ErrNoForward       = nn.ErrNoForward
	ErrMissingState    = nn.ErrMissingState
)
