package batchnorm

import (
	"math/rand"

	"github.com/born-ml/bnorm/internal/parallel"
	"github.com/born-ml/bnorm/internal/tensor"
)

// sequentialConfig runs everything on the calling goroutine.
func sequentialConfig() Config {
	return Config{Parallel: parallel.Sequential(), Blocks: 32}
}

// randNormal returns n samples from N(mean, std^2).
func randNormal(rng *rand.Rand, n int, mean, std float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()*std + mean
	}
	return out
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// toNHWC copies a dense NCHW buffer into a dense NHWC buffer.
func toNHWC(src []float64, s tensor.Shape) []float64 {
	from := tensor.NewView(s, tensor.NCHW)
	to := tensor.NewView(s, tensor.NHWC)
	dst := make([]float64, len(src))
	for n := range s.N {
		for c := range s.C {
			for h := range s.H {
				for w := range s.W {
					dst[to.Offset(n, c, h, w)] = src[from.Offset(n, c, h, w)]
				}
			}
		}
	}
	return dst
}

// trainOnce runs a float64 training forward pass with unit scale and zero
// bias and returns the output together with the saved statistics.
func trainOnce(eng *Engine[float64], mode Mode, view tensor.View, x []float64, eps float64) (y, mean, invVar []float64, err error) {
	g := NumGroups(mode, view)
	y = make([]float64, len(x))
	mean = make([]float64, g)
	invVar = make([]float64, g)
	err = eng.ForwardTrain(TrainArgs[float64]{
		Mode: mode, View: view,
		X: x, Scale: filled(g, 1), Bias: make([]float64, g), Y: y,
		Epsilon:          eps,
		SavedMean:        mean,
		SavedInvVariance: invVar,
	})
	return y, mean, invVar, err
}
