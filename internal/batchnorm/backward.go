package batchnorm

import (
	"github.com/born-ml/bnorm/internal/parallel"
	"github.com/born-ml/bnorm/internal/tensor"
)

// BackwardArgs are the buffers of a backward pass.
type BackwardArgs[T tensor.Element] struct {
	Mode Mode
	View tensor.View

	X     []T // forward input
	DY    []T // gradient of the loss w.r.t. the forward output
	Scale []T

	// SavedMean and SavedInvVariance come from ForwardTrain. When nil the
	// statistics are recomputed from X using Epsilon.
	SavedMean        []float64
	SavedInvVariance []float64
	Epsilon          float64

	DX     []T       // output, one entry per element; may alias DY
	DScale []float64 // output, Σ xhat*dy per group
	DBias  []float64 // output, Σ dy per group
}

// Backward computes the input, scale and bias gradients.
//
// For a group of M members with statistics (mean, invStd):
//
//	xhat_i    = (x_i - mean) * invStd
//	dbias     = Σ dy_i
//	dscale    = Σ xhat_i * dy_i
//	dx_i      = invStd/M * (M*scale*dy_i - Σ scale*dy - xhat_i * Σ scale*dy*xhat)
//
// dscale is the raw sum, the exact gradient with respect to scale; it is
// not divided by M in either mode.
func (e *Engine[T]) Backward(a BackwardArgs[T]) error {
	g, err := NewGrouping(a.Mode, a.View)
	if err != nil {
		return err
	}
	n := g.Groups()
	err = firstErr(
		checkElems("x", a.X, a.View),
		checkElems("dy", a.DY, a.View),
		checkElems("dx", a.DX, a.View),
		checkGroups("scale", a.Scale, n),
		checkGroups("dscale", a.DScale, n),
		checkGroups("dbias", a.DBias, n),
		checkPair("saved mean", a.SavedMean, "saved inverse variance", a.SavedInvVariance, n),
	)
	if err != nil {
		return err
	}

	means, invStd := a.SavedMean, a.SavedInvVariance
	if means == nil {
		if err := checkEpsilon(a.Epsilon); err != nil {
			return err
		}
		means = make([]float64, n)
		invStd = make([]float64, n)
		for id, s := range e.moments(g, a.X) {
			means[id] = s.Mean
			invStd[id] = InvStd(s.Variance, a.Epsilon)
		}
	}

	if e.blocked(g) {
		offs := make([]int, g.Size())
		xhat := make([]float64, g.Size())
		for id := range n {
			e.backwardGroup(a, id, g.Offsets(id, offs), xhat, means[id], invStd[id], e.cfg.Parallel)
		}
		return nil
	}

	parallel.ForRange(n, func(start, end int) {
		offs := make([]int, g.Size())
		xhat := make([]float64, g.Size())
		for id := start; id < end; id++ {
			e.backwardGroup(a, id, g.Offsets(id, offs), xhat, means[id], invStd[id], parallel.Sequential())
		}
	}, e.cfg.Parallel)
	return nil
}

// Accumulator slots filled by backward pass 1.
const (
	accDBias = iota
	accDScale
	accScaledDY     // Σ scale*dy
	accScaledDYXhat // Σ scale*dy*xhat
	accWidth
)

// backwardGroup runs both backward passes over one group. With a parallel
// cfg each pass is split into blocks; pass 2 starts after pass 1 finished.
func (e *Engine[T]) backwardGroup(a BackwardArgs[T], id int, offs []int, xhat []float64, mean, invStd float64, cfg parallel.Config) {
	load, store := e.codec.Load, e.codec.Store
	scale := load(a.Scale[id])

	var acc [accWidth]float64
	parallel.ReduceVec(len(offs), e.cfg.Blocks, acc[:], func(start, end int, acc []float64) {
		for i := start; i < end; i++ {
			o := offs[i]
			xh := (load(a.X[o]) - mean) * invStd
			xhat[i] = xh
			dy := load(a.DY[o])
			acc[accDBias] += dy
			acc[accDScale] += xh * dy
			sdy := scale * dy
			acc[accScaledDY] += sdy
			acc[accScaledDYXhat] += sdy * xh
		}
	}, cfg)
	a.DBias[id] = acc[accDBias]
	a.DScale[id] = acc[accDScale]

	m := float64(len(offs))
	k := invStd / m
	sumDY, sumDYXhat := acc[accScaledDY], acc[accScaledDYXhat]
	parallel.ForRange(len(offs), func(start, end int) {
		for i := start; i < end; i++ {
			o := offs[i]
			dy := load(a.DY[o])
			a.DX[o] = store(k * (m*scale*dy - sumDY - xhat[i]*sumDYXhat))
		}
	}, cfg)
}
