package batchnorm

import (
	"fmt"
	"math"

	"github.com/born-ml/bnorm/internal/tensor"
)

// checkElems verifies an element buffer covers every offset of the view.
func checkElems[T tensor.Element](name string, buf []T, view tensor.View) error {
	if len(buf) < view.Len() {
		return fmt.Errorf("%w: %s has %d elements, view %v needs %d", ErrBufferSize, name, len(buf), view.Shape, view.Len())
	}
	return nil
}

// checkGroups verifies a per-group buffer has exactly n entries.
func checkGroups[E any](name string, buf []E, n int) error {
	if len(buf) != n {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrGroupSize, name, len(buf), n)
	}
	return nil
}

// checkPair verifies two optional buffers are both present or both nil,
// and that present ones have n entries.
func checkPair(meanName string, mean []float64, varName string, variance []float64, n int) error {
	if (mean == nil) != (variance == nil) {
		return fmt.Errorf("%w: %s and %s", ErrUnpairedStats, meanName, varName)
	}
	if mean == nil {
		return nil
	}
	if err := checkGroups(meanName, mean, n); err != nil {
		return err
	}
	return checkGroups(varName, variance, n)
}

func checkEpsilon(eps float64) error {
	if eps < 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidEpsilon, eps)
	}
	return nil
}

func checkMomentum(m float64) error {
	if !(m >= 0 && m <= 1) {
		return fmt.Errorf("%w: %v", ErrInvalidMomentum, m)
	}
	return nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
