package batchnorm

import "github.com/born-ml/bnorm/internal/tensor"

// TrainArgs are the buffers of a training forward pass.
//
// Scale and Bias, and every float64 buffer, hold one entry per group (see
// NumGroups). Y may alias X.
type TrainArgs[T tensor.Element] struct {
	Mode Mode
	View tensor.View

	X     []T
	Scale []T
	Bias  []T
	Y     []T // output

	Epsilon  float64
	Momentum float64

	// SavedMean and SavedInvVariance receive the batch mean and
	// 1/sqrt(variance+epsilon) for a later Backward. Nil disables saving.
	SavedMean        []float64
	SavedInvVariance []float64

	// RunningMean and RunningVariance are updated in place. Nil disables
	// tracking.
	RunningMean     []float64
	RunningVariance []float64
}

// InferArgs are the buffers of an inference forward pass.
type InferArgs[T tensor.Element] struct {
	Mode Mode
	View tensor.View

	X     []T
	Scale []T
	Bias  []T
	Y     []T // output

	Epsilon float64

	// EstimatedMean and EstimatedVariance are the frozen statistics to
	// normalize with, usually the running statistics of training. When nil,
	// statistics are computed from X with no side effects.
	EstimatedMean     []float64
	EstimatedVariance []float64
}

// ForwardTrain computes fresh batch statistics, optionally updates the
// running statistics and saves mean/inverse-variance, then normalizes X
// into Y.
func (e *Engine[T]) ForwardTrain(a TrainArgs[T]) error {
	g, err := NewGrouping(a.Mode, a.View)
	if err != nil {
		return err
	}
	n := g.Groups()
	err = firstErr(
		checkElems("x", a.X, a.View),
		checkElems("y", a.Y, a.View),
		checkGroups("scale", a.Scale, n),
		checkGroups("bias", a.Bias, n),
		checkEpsilon(a.Epsilon),
		checkPair("saved mean", a.SavedMean, "saved inverse variance", a.SavedInvVariance, n),
		checkPair("running mean", a.RunningMean, "running variance", a.RunningVariance, n),
	)
	if err != nil {
		return err
	}
	if a.RunningMean != nil {
		if err := checkMomentum(a.Momentum); err != nil {
			return err
		}
	}

	stats := e.moments(g, a.X)

	means := make([]float64, n)
	invStd := make([]float64, n)
	for id, s := range stats {
		means[id] = s.Mean
		invStd[id] = InvStd(s.Variance, a.Epsilon)
		if a.RunningMean != nil {
			UpdateRunning(a.RunningMean, a.RunningVariance, id, s, g.Size(), a.Momentum)
		}
		if a.SavedMean != nil {
			a.SavedMean[id] = s.Mean
			a.SavedInvVariance[id] = invStd[id]
		}
	}

	e.normalize(g, a.X, a.Scale, a.Bias, a.Y, means, invStd)
	return nil
}

// ForwardInfer normalizes X into Y with the estimated statistics, or with
// statistics computed from X when none are supplied. It never writes
// anything but Y.
func (e *Engine[T]) ForwardInfer(a InferArgs[T]) error {
	g, err := NewGrouping(a.Mode, a.View)
	if err != nil {
		return err
	}
	n := g.Groups()
	err = firstErr(
		checkElems("x", a.X, a.View),
		checkElems("y", a.Y, a.View),
		checkGroups("scale", a.Scale, n),
		checkGroups("bias", a.Bias, n),
		checkEpsilon(a.Epsilon),
		checkPair("estimated mean", a.EstimatedMean, "estimated variance", a.EstimatedVariance, n),
	)
	if err != nil {
		return err
	}

	means := a.EstimatedMean
	invStd := make([]float64, n)
	if means != nil {
		for id, v := range a.EstimatedVariance {
			invStd[id] = InvStd(v, a.Epsilon)
		}
	} else {
		means = make([]float64, n)
		for id, s := range e.moments(g, a.X) {
			means[id] = s.Mean
			invStd[id] = InvStd(s.Variance, a.Epsilon)
		}
	}

	e.normalize(g, a.X, a.Scale, a.Bias, a.Y, means, invStd)
	return nil
}

// Moments runs only phase 1 of the forward pass and returns the batch
// statistics of every group of x.
func (e *Engine[T]) Moments(mode Mode, view tensor.View, x []T) ([]Moments, error) {
	g, err := NewGrouping(mode, view)
	if err != nil {
		return nil, err
	}
	if err := checkElems("x", x, view); err != nil {
		return nil, err
	}
	return e.moments(g, x), nil
}

// Normalize runs only phase 2 of the forward pass with caller-supplied
// per-group mean and inverse standard deviation.
func (e *Engine[T]) Normalize(mode Mode, view tensor.View, x, scale, bias, y []T, mean, invStd []float64) error {
	g, err := NewGrouping(mode, view)
	if err != nil {
		return err
	}
	n := g.Groups()
	err = firstErr(
		checkElems("x", x, view),
		checkElems("y", y, view),
		checkGroups("scale", scale, n),
		checkGroups("bias", bias, n),
		checkPair("mean", mean, "inverse std", invStd, n),
	)
	if err != nil {
		return err
	}
	if mean == nil {
		return checkGroups("mean", mean, n)
	}
	e.normalize(g, x, scale, bias, y, mean, invStd)
	return nil
}
