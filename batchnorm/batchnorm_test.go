// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package batchnorm_test

import (
	"testing"

	"github.com/born-ml/bnorm/batchnorm"
	"github.com/born-ml/bnorm/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublicAPI runs a training and an inference pass through the
// public package only.
func TestPublicAPI(t *testing.T) {
	eng := batchnorm.New[float32](batchnorm.DefaultConfig())
	view := tensor.NewView(tensor.Shape{N: 2, C: 1, H: 1, W: 2}, tensor.NCHW)
	groups := batchnorm.NumGroups(batchnorm.Spatial, view)
	require.Equal(t, 1, groups)

	mean, variance := batchnorm.NewRunningStats(groups)
	y := make([]float32, 4)
	err := eng.ForwardTrain(batchnorm.TrainArgs[float32]{
		Mode: batchnorm.Spatial, View: view,
		X: []float32{1, 3, 1, 3}, Scale: []float32{1}, Bias: []float32{0}, Y: y,
		Epsilon: 0, Momentum: batchnorm.DefaultMomentum,
		RunningMean: mean, RunningVariance: variance,
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 1, -1, 1}, y)
	assert.InDelta(t, 0.2, mean[0], 1e-12)

	err = eng.ForwardInfer(batchnorm.InferArgs[float32]{
		Mode: batchnorm.Spatial, View: view,
		X: []float32{1, 3, 1, 3}, Scale: []float32{1}, Bias: []float32{0}, Y: y,
		Epsilon: -1,
	})
	assert.ErrorIs(t, err, batchnorm.ErrInvalidEpsilon)
}
