package batchnorm

import (
	"math"

	"github.com/born-ml/bnorm/internal/parallel"
)

// Moments are the batch statistics of one group.
type Moments struct {
	Mean     float64
	Variance float64 // biased (population) variance
}

// InvStd returns 1/sqrt(variance+epsilon). Epsilon is added before the
// square root, so a zero variance still yields a finite result.
func InvStd(variance, epsilon float64) float64 {
	return 1.0 / math.Sqrt(variance+epsilon)
}

// sum returns the sum of x over offs[start:end].
func (e *Engine[T]) sum(x []T, offs []int, start, end int) float64 {
	var s float64
	for _, o := range offs[start:end] {
		s += e.codec.Load(x[o])
	}
	return s
}

// sumSqDev returns the sum of (x-mean)^2 over offs[start:end].
func (e *Engine[T]) sumSqDev(x []T, offs []int, start, end int, mean float64) float64 {
	var s float64
	for _, o := range offs[start:end] {
		d := e.codec.Load(x[o]) - mean
		s += d * d
	}
	return s
}

// groupMoments is the two-pass accumulator: the mean first, then the sum
// of squared deviations from that mean.
func (e *Engine[T]) groupMoments(x []T, offs []int) Moments {
	m := float64(len(offs))
	mean := e.sum(x, offs, 0, len(offs)) / m
	variance := e.sumSqDev(x, offs, 0, len(offs), mean) / m
	return Moments{Mean: mean, Variance: variance}
}

// blockedMoments is groupMoments with each pass split into e.cfg.Blocks
// partial sums that may run concurrently.
func (e *Engine[T]) blockedMoments(x []T, offs []int) Moments {
	m := float64(len(offs))
	mean := parallel.Reduce(len(offs), e.cfg.Blocks, func(start, end int) float64 {
		return e.sum(x, offs, start, end)
	}, e.cfg.Parallel) / m
	variance := parallel.Reduce(len(offs), e.cfg.Blocks, func(start, end int) float64 {
		return e.sumSqDev(x, offs, start, end, mean)
	}, e.cfg.Parallel) / m
	return Moments{Mean: mean, Variance: variance}
}

// moments runs phase 1 of the forward pass over every group.
func (e *Engine[T]) moments(g Grouping, x []T) []Moments {
	stats := make([]Moments, g.Groups())
	if e.blocked(g) {
		offs := make([]int, g.Size())
		for id := range stats {
			stats[id] = e.blockedMoments(x, g.Offsets(id, offs))
		}
		return stats
	}

	parallel.ForRange(len(stats), func(start, end int) {
		offs := make([]int, g.Size())
		for id := start; id < end; id++ {
			stats[id] = e.groupMoments(x, g.Offsets(id, offs))
		}
	}, e.cfg.Parallel)
	return stats
}
