// Package verify checks batch-norm results against independent
// references: element-wise comparisons, moment checks through gonum/stat
// and finite-difference gradient checks through gonum/diff/fd.
package verify

import (
	"fmt"
	"math"

	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MaxDiff returns the largest absolute element difference between a and b
// and the index where it occurs (-1 for empty input). NaN differences win.
// It panics if the lengths differ.
func MaxDiff(a, b []float64) (float64, int) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("verify: length mismatch %d vs %d", len(a), len(b)))
	}
	worst, idx := 0.0, -1
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if math.IsNaN(d) {
			return d, i
		}
		if idx < 0 || d > worst {
			worst, idx = d, i
		}
	}
	return worst, idx
}

// RMSDiff returns the root-mean-square difference of a and b relative to
// the larger of their magnitudes.
func RMSDiff(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	scale := math.Max(floats.Norm(a, math.Inf(1)), floats.Norm(b, math.Inf(1)))
	if scale == 0 {
		return 0
	}
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a))) / scale
}

// FindNonFinite returns the index of the first NaN or infinite element, or
// -1.
func FindNonFinite(x []float64) int {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

// AllZero reports whether every element of x is zero.
func AllZero(x []float64) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}

// Report summarizes a comparison of a result against a reference.
type Report struct {
	MaxDiff   float64
	Index     int // position of MaxDiff, -1 when empty
	RMS       float64
	NonFinite int  // first non-finite element of the result, or -1
	AllZero   bool // result is all zeros while the reference is not
}

// Compare builds a Report for got against want.
func Compare(want, got []float64) Report {
	r := Report{NonFinite: FindNonFinite(got)}
	r.MaxDiff, r.Index = MaxDiff(want, got)
	r.RMS = RMSDiff(want, got)
	r.AllZero = AllZero(got) && !AllZero(want)
	return r
}

// OK reports whether the comparison passed with the given absolute
// tolerance.
func (r Report) OK(tol float64) bool {
	return r.NonFinite < 0 && !r.AllZero && r.MaxDiff <= tol
}

// String formats the report on one line.
func (r Report) String() string {
	return fmt.Sprintf("max=%.3g at %d rms=%.3g nonfinite=%d allzero=%t",
		r.MaxDiff, r.Index, r.RMS, r.NonFinite, r.AllZero)
}

// GroupMoments computes the population mean and variance of every group
// of x with gonum/stat, independently of the engine's reductions.
func GroupMoments(mode batchnorm.Mode, view tensor.View, x []float64) ([]batchnorm.Moments, error) {
	g, err := batchnorm.NewGrouping(mode, view)
	if err != nil {
		return nil, err
	}
	if len(x) < view.Len() {
		return nil, fmt.Errorf("%w: %d elements, view needs %d", batchnorm.ErrBufferSize, len(x), view.Len())
	}

	out := make([]batchnorm.Moments, g.Groups())
	offs := make([]int, g.Size())
	vals := make([]float64, g.Size())
	for id := range out {
		for i, o := range g.Offsets(id, offs) {
			vals[i] = x[o]
		}
		mean, variance := stat.PopMeanVariance(vals, nil)
		out[id] = batchnorm.Moments{Mean: mean, Variance: variance}
	}
	return out, nil
}
