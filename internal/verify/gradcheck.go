package verify

import (
	"fmt"

	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/parallel"
	"github.com/born-ml/bnorm/internal/tensor"
	"gonum.org/v1/gonum/diff/fd"
)

// GradCase is a float64 problem for a gradient check. The scalar loss is
// L = Σ W_i * y_i, so W plays the role of dy.
type GradCase struct {
	Mode    batchnorm.Mode
	View    tensor.View
	X       []float64
	Scale   []float64
	Bias    []float64
	W       []float64
	Epsilon float64
}

// GradReport holds the analytic-versus-numeric comparisons of a check.
type GradReport struct {
	DX     Report
	DScale Report
	DBias  Report
}

// OK reports whether all three gradients agree within tol.
func (r GradReport) OK(tol float64) bool {
	return r.DX.OK(tol) && r.DScale.OK(tol) && r.DBias.OK(tol)
}

// GradCheck compares the analytic gradients of Backward with central
// finite differences of ForwardTrain. step is the difference step
// (default 1e-5).
func GradCheck(c GradCase, step float64) (GradReport, error) {
	if step <= 0 {
		step = 1e-5
	}
	if len(c.W) != len(c.X) {
		return GradReport{}, fmt.Errorf("%w: %d weights for %d inputs", batchnorm.ErrBufferSize, len(c.W), len(c.X))
	}
	eng := batchnorm.New[float64](batchnorm.Config{Parallel: parallel.Sequential()})
	groups := batchnorm.NumGroups(c.Mode, c.View)

	dx := make([]float64, len(c.X))
	dscale := make([]float64, groups)
	dbias := make([]float64, groups)
	err := eng.Backward(batchnorm.BackwardArgs[float64]{
		Mode: c.Mode, View: c.View,
		X: c.X, DY: c.W, Scale: c.Scale, Epsilon: c.Epsilon,
		DX: dx, DScale: dscale, DBias: dbias,
	})
	if err != nil {
		return GradReport{}, err
	}

	y := make([]float64, len(c.X))
	var ferr error
	loss := func(x, scale, bias []float64) float64 {
		err := eng.ForwardTrain(batchnorm.TrainArgs[float64]{
			Mode: c.Mode, View: c.View,
			X: x, Scale: scale, Bias: bias, Y: y,
			Epsilon: c.Epsilon,
		})
		if err != nil {
			ferr = err
			return 0
		}
		var l float64
		for i, w := range c.W {
			l += w * y[i]
		}
		return l
	}

	settings := &fd.Settings{Formula: fd.Central, Step: step}
	numDX := fd.Gradient(nil, func(x []float64) float64 { return loss(x, c.Scale, c.Bias) }, c.X, settings)
	numDScale := fd.Gradient(nil, func(s []float64) float64 { return loss(c.X, s, c.Bias) }, c.Scale, settings)
	numDBias := fd.Gradient(nil, func(b []float64) float64 { return loss(c.X, c.Scale, b) }, c.Bias, settings)
	if ferr != nil {
		return GradReport{}, ferr
	}

	return GradReport{
		DX:     Compare(numDX, dx),
		DScale: Compare(numDScale, dscale),
		DBias:  Compare(numDBias, dbias),
	}, nil
}
