package batchnorm

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/born-ml/bnorm/internal/parallel"
	"github.com/born-ml/bnorm/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

// lossOf returns L = Σ w_i * y_i for a training forward pass, so that
// dL/dy = w.
func lossOf(t *testing.T, mode Mode, view tensor.View, x, scale, bias, w []float64, eps float64) float64 {
	t.Helper()
	eng := New[float64](sequentialConfig())
	y := make([]float64, len(x))
	err := eng.ForwardTrain(TrainArgs[float64]{
		Mode: mode, View: view, X: x, Scale: scale, Bias: bias, Y: y, Epsilon: eps,
	})
	require.NoError(t, err)
	var l float64
	for i := range y {
		l += w[i] * y[i]
	}
	return l
}

type backwardCase struct {
	name  string
	mode  Mode
	view  tensor.View
	x     []float64
	scale []float64
	bias  []float64
	w     []float64
	eps   float64
}

func backwardCases() []backwardCase {
	rng := rand.New(rand.NewSource(31))
	small := tensor.NewView(tensor.Shape{N: 4, C: 1, H: 1, W: 1}, tensor.NCHW)
	spatial := tensor.NewView(tensor.Shape{N: 2, C: 3, H: 2, W: 2}, tensor.NCHW)
	perAct := tensor.NewView(tensor.Shape{N: 5, C: 2, H: 1, W: 2}, tensor.NHWC)

	return []backwardCase{
		{
			name: "literal group", mode: PerActivation, view: small,
			x: []float64{1, 2, 3, 4}, scale: []float64{1}, bias: []float64{0},
			w: []float64{0.3, -1.2, 0.7, 2.0}, eps: 1e-5,
		},
		{
			name: "spatial", mode: Spatial, view: spatial,
			x:     randNormal(rng, 24, 1, 2),
			scale: []float64{0.5, 1.5, -2}, bias: []float64{0, 1, -1},
			w: randNormal(rng, 24, 0, 1), eps: 1e-5,
		},
		{
			name: "per-activation nhwc", mode: PerActivation, view: perAct,
			x:     randNormal(rng, 20, -3, 0.7),
			scale: randNormal(rng, 4, 1, 0.3), bias: randNormal(rng, 4, 0, 1),
			w: randNormal(rng, 20, 0, 1), eps: 1e-3,
		},
	}
}

// TestBackward_FiniteDifferences compares dx, dscale and dbias against
// central finite differences of the forward pass.
func TestBackward_FiniteDifferences(t *testing.T) {
	settings := &fd.Settings{Formula: fd.Central, Step: 1e-5}

	for _, tc := range backwardCases() {
		t.Run(tc.name, func(t *testing.T) {
			groups := NumGroups(tc.mode, tc.view)
			dx := make([]float64, len(tc.x))
			dscale := make([]float64, groups)
			dbias := make([]float64, groups)

			eng := New[float64](sequentialConfig())
			require.NoError(t, eng.Backward(BackwardArgs[float64]{
				Mode: tc.mode, View: tc.view,
				X: tc.x, DY: tc.w, Scale: tc.scale, Epsilon: tc.eps,
				DX: dx, DScale: dscale, DBias: dbias,
			}))

			wantDX := fd.Gradient(nil, func(x []float64) float64 {
				return lossOf(t, tc.mode, tc.view, x, tc.scale, tc.bias, tc.w, tc.eps)
			}, tc.x, settings)
			wantDScale := fd.Gradient(nil, func(s []float64) float64 {
				return lossOf(t, tc.mode, tc.view, tc.x, s, tc.bias, tc.w, tc.eps)
			}, tc.scale, settings)
			wantDBias := fd.Gradient(nil, func(b []float64) float64 {
				return lossOf(t, tc.mode, tc.view, tc.x, tc.scale, b, tc.w, tc.eps)
			}, tc.bias, settings)

			assert.InDeltaSlice(t, wantDX, dx, 1e-4)
			assert.InDeltaSlice(t, wantDScale, dscale, 1e-4)
			assert.InDeltaSlice(t, wantDBias, dbias, 1e-4)
		})
	}
}

// TestBackward_SavedMatchesRecomputed checks both statistics sources.
func TestBackward_SavedMatchesRecomputed(t *testing.T) {
	for _, tc := range backwardCases() {
		t.Run(tc.name, func(t *testing.T) {
			eng := New[float64](sequentialConfig())
			groups := NumGroups(tc.mode, tc.view)
			_, mean, invVar, err := trainOnce(eng, tc.mode, tc.view, tc.x, tc.eps)
			require.NoError(t, err)

			run := func(savedMean, savedInv []float64) (dx, dscale, dbias []float64) {
				dx = make([]float64, len(tc.x))
				dscale = make([]float64, groups)
				dbias = make([]float64, groups)
				require.NoError(t, eng.Backward(BackwardArgs[float64]{
					Mode: tc.mode, View: tc.view,
					X: tc.x, DY: tc.w, Scale: tc.scale,
					SavedMean: savedMean, SavedInvVariance: savedInv, Epsilon: tc.eps,
					DX: dx, DScale: dscale, DBias: dbias,
				}))
				return
			}

			dx1, ds1, db1 := run(mean, invVar)
			dx2, ds2, db2 := run(nil, nil)
			assert.Equal(t, dx1, dx2)
			assert.Equal(t, ds1, ds2)
			assert.Equal(t, db1, db2)
		})
	}
}

// TestBackward_GradientSums checks the structural identities of the closed
// form: dx sums to zero and is orthogonal to xhat within each group.
func TestBackward_GradientSums(t *testing.T) {
	rng := rand.New(rand.NewSource(37))
	view := tensor.NewView(tensor.Shape{N: 6, C: 2, H: 3, W: 2}, tensor.NCHW)
	x := randNormal(rng, view.Len(), 2, 3)
	dy := randNormal(rng, view.Len(), 0, 1)

	for _, mode := range []Mode{PerActivation, Spatial} {
		eng := New[float64](sequentialConfig())
		groups := NumGroups(mode, view)
		_, mean, invVar, err := trainOnce(eng, mode, view, x, 1e-5)
		require.NoError(t, err)

		dx := make([]float64, len(x))
		require.NoError(t, eng.Backward(BackwardArgs[float64]{
			Mode: mode, View: view, X: x, DY: dy, Scale: randNormal(rng, groups, 1, 0.5),
			SavedMean: mean, SavedInvVariance: invVar,
			DX: dx, DScale: make([]float64, groups), DBias: make([]float64, groups),
		}))

		g, err := NewGrouping(mode, view)
		require.NoError(t, err)
		offs := make([]int, g.Size())
		for id := range groups {
			var sum, dot float64
			for _, o := range g.Offsets(id, offs) {
				sum += dx[o]
				dot += dx[o] * (x[o] - mean[id]) * invVar[id]
			}
			assert.InDelta(t, 0, sum, 1e-9, "%v group %d", mode, id)
			// eps makes the orthogonality approximate
			assert.InDelta(t, 0, dot, 1e-3, "%v group %d", mode, id)
		}
	}
}

func TestBackward_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	view := tensor.NewView(tensor.Shape{N: 8, C: 2, H: 5, W: 5}, tensor.NCHW)
	x := randNormal(rng, view.Len(), 0, 1)
	dy := randNormal(rng, view.Len(), 0, 1)
	par := parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	run := func(cfg Config, mode Mode) (dx, dscale, dbias []float64) {
		groups := NumGroups(mode, view)
		dx = make([]float64, len(x))
		dscale = make([]float64, groups)
		dbias = make([]float64, groups)
		require.NoError(t, New[float64](cfg).Backward(BackwardArgs[float64]{
			Mode: mode, View: view, X: x, DY: dy, Scale: filled(groups, 0.8), Epsilon: 1e-5,
			DX: dx, DScale: dscale, DBias: dbias,
		}))
		return
	}

	for _, mode := range []Mode{PerActivation, Spatial} {
		dx0, ds0, db0 := run(sequentialConfig(), mode)

		dx1, ds1, db1 := run(Config{Parallel: par, Blocks: 32}, mode)
		assert.Equal(t, dx0, dx1)
		assert.Equal(t, ds0, ds1)
		assert.Equal(t, db0, db1)

		dx2, ds2, db2 := run(Config{Parallel: par, BlockedMinGroup: 8, Blocks: 32}, mode)
		assert.InDeltaSlice(t, dx0, dx2, 1e-12)
		assert.InDeltaSlice(t, ds0, ds2, 1e-12)
		assert.InDeltaSlice(t, db0, db2, 1e-12)
	}
}

func TestBackward_NeverTouchesRunningStats(t *testing.T) {
	// Backward has no running-statistics inputs at all; this guards the
	// saved buffers instead.
	view := tensor.NewView(tensor.Shape{N: 3, C: 1, H: 2, W: 1}, tensor.NCHW)
	x := []float64{1, 4, 2, 8, 3, 5}
	eng := New[float64](sequentialConfig())
	_, mean, invVar, err := trainOnce(eng, Spatial, view, x, 1e-5)
	require.NoError(t, err)
	meanCopy := append([]float64(nil), mean...)
	invCopy := append([]float64(nil), invVar...)

	require.NoError(t, eng.Backward(BackwardArgs[float64]{
		Mode: Spatial, View: view, X: x, DY: filled(6, 1), Scale: []float64{1},
		SavedMean: mean, SavedInvVariance: invVar,
		DX: make([]float64, 6), DScale: make([]float64, 1), DBias: make([]float64, 1),
	}))
	assert.Equal(t, meanCopy, mean)
	assert.Equal(t, invCopy, invVar)
}

func TestValidation(t *testing.T) {
	view := tensor.NewView(tensor.Shape{N: 2, C: 2, H: 1, W: 1}, tensor.NCHW)
	x := []float64{1, 2, 3, 4}
	valid := func() TrainArgs[float64] {
		return TrainArgs[float64]{
			Mode: Spatial, View: view,
			X: x, Y: make([]float64, 4), Scale: filled(2, 1), Bias: make([]float64, 2),
			Epsilon: 1e-5, Momentum: 0.1,
		}
	}

	tests := []struct {
		name   string
		mutate func(a *TrainArgs[float64])
		want   error
	}{
		{"zero batch", func(a *TrainArgs[float64]) {
			a.View = tensor.NewView(tensor.Shape{N: 0, C: 2, H: 1, W: 1}, tensor.NCHW)
		}, ErrInvalidShape},
		{"unknown mode", func(a *TrainArgs[float64]) { a.Mode = Mode(9) }, ErrUnknownMode},
		{"short input", func(a *TrainArgs[float64]) { a.X = x[:3] }, ErrBufferSize},
		{"short output", func(a *TrainArgs[float64]) { a.Y = nil }, ErrBufferSize},
		{"scale length", func(a *TrainArgs[float64]) { a.Scale = filled(4, 1) }, ErrGroupSize},
		{"bias length", func(a *TrainArgs[float64]) { a.Bias = nil }, ErrGroupSize},
		{"negative epsilon", func(a *TrainArgs[float64]) { a.Epsilon = -1 }, ErrInvalidEpsilon},
		{"unpaired saved", func(a *TrainArgs[float64]) { a.SavedMean = make([]float64, 2) }, ErrUnpairedStats},
		{"running length", func(a *TrainArgs[float64]) {
			a.RunningMean, a.RunningVariance = NewRunningStats(3)
		}, ErrGroupSize},
		{"momentum range", func(a *TrainArgs[float64]) {
			a.RunningMean, a.RunningVariance = NewRunningStats(2)
			a.Momentum = 1.5
		}, ErrInvalidMomentum},
	}

	eng := New[float64](sequentialConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid()
			tt.mutate(&a)
			err := eng.ForwardTrain(a)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}

	require.NoError(t, eng.ForwardTrain(valid()))

	err := eng.ForwardInfer(InferArgs[float64]{
		Mode: Spatial, View: view, X: x, Y: make([]float64, 4),
		Scale: filled(2, 1), Bias: make([]float64, 2),
		EstimatedVariance: filled(2, 1),
	})
	assert.ErrorIs(t, err, ErrUnpairedStats)

	err = eng.Backward(BackwardArgs[float64]{
		Mode: Spatial, View: view, X: x, DY: x, Scale: filled(2, 1),
		DX: make([]float64, 4), DScale: make([]float64, 1), DBias: make([]float64, 2),
	})
	assert.ErrorIs(t, err, ErrGroupSize)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Spatial")
	require.NoError(t, err)
	assert.Equal(t, Spatial, m)

	m, err = ParseMode("per-activation")
	require.NoError(t, err)
	assert.Equal(t, PerActivation, m)

	_, err = ParseMode("instance")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestGrouping(t *testing.T) {
	view := tensor.NewView(tensor.Shape{N: 2, C: 3, H: 2, W: 2}, tensor.NCHW)

	pa, err := NewGrouping(PerActivation, view)
	require.NoError(t, err)
	assert.Equal(t, 12, pa.Groups())
	assert.Equal(t, 2, pa.Size())
	// group 5 = (c=1, h=0, w=1): offsets 5 and 5+12
	assert.Equal(t, []int{5, 17}, pa.Offsets(5, make([]int, 2)))

	sp, err := NewGrouping(Spatial, view)
	require.NoError(t, err)
	assert.Equal(t, 3, sp.Groups())
	assert.Equal(t, 8, sp.Size())
	// rows, then columns, then batch
	assert.Equal(t, []int{4, 16, 5, 17, 6, 18, 7, 19}, sp.Offsets(1, make([]int, 8)))

	for p := range view.NumElements() {
		n, rest := p/12, p%12
		c := rest / 4
		assert.Equal(t, rest, pa.GroupOf(p))
		assert.Equal(t, c, sp.GroupOf(p), "position %d (n=%d)", p, n)
	}
}
