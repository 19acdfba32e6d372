package nn

import "github.com/born-ml/bnorm/internal/tensor"

// Parameter represents a trainable parameter in a neural network.
//
// Values are stored in the storage type T; gradients are float64, the
// precision the engine accumulates in.
//
// Example:
//
//	gamma := nn.NewParameter("weight", nn.Ones[float32](16))
//	_ = gamma.Grad() // nil until a backward pass ran
type Parameter[T tensor.Element] struct {
	name string    // Parameter name (e.g., "weight", "bias")
	data []T       // The parameter values
	grad []float64 // Gradient (computed during backward pass)
}

// NewParameter creates a new trainable parameter.
//
// Gradient will be allocated during the first backward pass.
func NewParameter[T tensor.Element](name string, data []T) *Parameter[T] {
	return &Parameter[T]{
		name: name,
		data: data,
	}
}

// Name returns the parameter name.
func (p *Parameter[T]) Name() string {
	return p.name
}

// Data returns the parameter values. Optimizers update them in place.
func (p *Parameter[T]) Data() []T {
	return p.data
}

// Grad returns the gradient.
//
// Returns nil if no gradient has been computed yet (before backward pass).
func (p *Parameter[T]) Grad() []float64 {
	return p.grad
}

// SetGrad sets the gradient.
func (p *Parameter[T]) SetGrad(grad []float64) {
	p.grad = grad
}

// ZeroGrad clears the gradient.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter[T]) ZeroGrad() {
	p.grad = nil
}
