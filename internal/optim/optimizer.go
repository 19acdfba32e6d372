// Package optim implements optimization algorithms for training the
// affine parameters of normalization layers.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Parameters are stored in their layer's storage type; optimizer state and
// arithmetic are float64, and results are written back through the
// storage codec.
//
// Example usage:
//
//	optimizer := optim.NewSGD(bn.Parameters(), optim.SGDConfig{LR: 0.1})
//
//	for range epochs {
//	    y, _ := bn.Forward(x, view)
//	    _, dy, _ := mse.Forward(y, target)
//	    _, _ = bn.Backward(dy)
//
//	    optimizer.Step()
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/bnorm/internal/nn"
	"github.com/born-ml/bnorm/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear gradients before next iteration
//   - GetLR: Get current learning rate (for monitoring/scheduling)
type Optimizer interface {
	// Step applies the gradients stored on the parameters.
	//
	// Parameters without a gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// zeroGrad clears the gradients of params.
func zeroGrad[T tensor.Element](params []*nn.Parameter[T]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
