// Package nn implements neural network modules on top of the
// batch-normalization engine.
//
// This package provides:
//   - Module interface: Base interface for layers over strided 4-D buffers
//   - Parameter: Trainable parameters with float64 gradients
//   - BatchNorm: Batch normalization layer (per-activation or spatial)
//   - MSELoss: Mean squared error with its gradient
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import "github.com/born-ml/bnorm/internal/tensor"

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
type Module[T tensor.Element] interface {
	// Forward computes the output of the module for input x laid out by
	// view. The output has the same view.
	Forward(x []T, view tensor.View) ([]T, error)

	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter[T]
}
