package batchnorm

// UpdateRunning blends one group's batch statistics into the running
// buffers at index g. count is the group size M.
//
//	runningMean     = runningMean*(1-momentum) + mean*momentum
//	runningVariance = momentum*runningVariance + (1-momentum)*adjusted
//
// where adjusted is the Bessel-corrected variance*M/(M-1), or the biased
// variance itself when M == 1. Note that momentum weights the new mean but
// the old variance.
func UpdateRunning(runningMean, runningVariance []float64, g int, m Moments, count int, momentum float64) {
	runningMean[g] = m.Mean*momentum + runningMean[g]*(1-momentum)

	adjusted := m.Variance
	if count > 1 {
		adjusted = float64(count) / float64(count-1) * m.Variance
	}
	runningVariance[g] = momentum*runningVariance[g] + (1-momentum)*adjusted
}

// NewRunningStats allocates running buffers for n groups, with the mean at
// zero and the variance at one.
func NewRunningStats(n int) (mean, variance []float64) {
	mean = make([]float64, n)
	variance = make([]float64, n)
	for i := range variance {
		variance[i] = 1
	}
	return mean, variance
}
