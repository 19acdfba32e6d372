// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package batchnorm

import (
	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/tensor"
)

// Default hyperparameters.
const (
	DefaultEpsilon  = batchnorm.DefaultEpsilon
	DefaultMomentum = batchnorm.DefaultMomentum
)

// Mode selects the reduction grouping.
type Mode = batchnorm.Mode

// Supported modes.
const (
	PerActivation = batchnorm.PerActivation
	Spatial       = batchnorm.Spatial
)

// ParseMode parses a mode name ("spatial", "per-activation").
func ParseMode(s string) (Mode, error) {
	return batchnorm.ParseMode(s)
}

// Grouping maps reduction groups to buffer offsets.
type Grouping = batchnorm.Grouping

// NewGrouping returns the grouping of mode over view.
func NewGrouping(mode Mode, view tensor.View) (Grouping, error) {
	return batchnorm.NewGrouping(mode, view)
}

// NumGroups returns the number of statistics pairs mode keeps for view.
func NumGroups(mode Mode, view tensor.View) int {
	return batchnorm.NumGroups(mode, view)
}

// Config controls how the engine schedules work.
type Config = batchnorm.Config

// DefaultConfig returns a parallel configuration sized to the machine.
func DefaultConfig() Config {
	return batchnorm.DefaultConfig()
}

// Engine runs batch normalization over element buffers of type T.
type Engine[T tensor.Element] = batchnorm.Engine[T]

// New creates an engine.
func New[T tensor.Element](cfg Config) *Engine[T] {
	return batchnorm.New[T](cfg)
}

// TrainArgs are the buffers of a training forward pass.
type TrainArgs[T tensor.Element] = batchnorm.TrainArgs[T]

// InferArgs are the buffers of an inference forward pass.
type InferArgs[T tensor.Element] = batchnorm.InferArgs[T]

// BackwardArgs are the buffers of a backward pass.
type BackwardArgs[T tensor.Element] = batchnorm.BackwardArgs[T]

// Moments are the batch statistics of one group.
type Moments = batchnorm.Moments

// InvStd returns 1/sqrt(variance+epsilon).
func InvStd(variance, epsilon float64) float64 {
	return batchnorm.InvStd(variance, epsilon)
}

// UpdateRunning blends one group's batch statistics into running buffers.
func UpdateRunning(runningMean, runningVariance []float64, g int, m Moments, count int, momentum float64) {
	batchnorm.UpdateRunning(runningMean, runningVariance, g, m, count, momentum)
}

// NewRunningStats allocates running buffers with mean 0 and variance 1.
func NewRunningStats(n int) (mean, variance []float64) {
	return batchnorm.NewRunningStats(n)
}

// Errors returned before any reduction starts.
var (
	ErrInvalidShape    = batchnorm.ErrInvalidShape
	ErrUnknownMode     = batchnorm.ErrUnknownMode
	ErrBufferSize      = batchnorm.ErrBufferSize
	ErrGroupSize       = batchnorm.ErrGroupSize
	ErrUnpairedStats   = batchnorm.ErrUnpairedStats
	ErrInvalidEpsilon  = batchnorm.ErrInvalidEpsilon
	ErrInvalidMomentum = batchnorm.ErrInvalidMomentum
)
