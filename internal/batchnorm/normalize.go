package batchnorm

import "github.com/born-ml/bnorm/internal/parallel"

// normalizeRange writes y = scale*(x-mean)*invStd + bias over offs[start:end].
func (e *Engine[T]) normalizeRange(x, y []T, offs []int, start, end int, scale, bias, mean, invStd float64) {
	for _, o := range offs[start:end] {
		xhat := (e.codec.Load(x[o]) - mean) * invStd
		y[o] = e.codec.Store(scale*xhat + bias)
	}
}

// normalize runs phase 2 of the forward pass. It must only start once
// mean and invStd are complete for every group.
func (e *Engine[T]) normalize(g Grouping, x, scale, bias, y []T, mean, invStd []float64) {
	load := e.codec.Load
	if e.blocked(g) {
		offs := make([]int, g.Size())
		for id := range g.Groups() {
			offs = g.Offsets(id, offs)
			s, b := load(scale[id]), load(bias[id])
			parallel.ForRange(len(offs), func(start, end int) {
				e.normalizeRange(x, y, offs, start, end, s, b, mean[id], invStd[id])
			}, e.cfg.Parallel)
		}
		return
	}

	parallel.ForRange(g.Groups(), func(start, end int) {
		offs := make([]int, g.Size())
		for id := start; id < end; id++ {
			offs = g.Offsets(id, offs)
			e.normalizeRange(x, y, offs, 0, len(offs), load(scale[id]), load(bias[id]), mean[id], invStd[id])
		}
	}, e.cfg.Parallel)
}
