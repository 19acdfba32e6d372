package optim

import (
	"fmt"

	"github.com/born-ml/bnorm/internal/nn"
	"github.com/born-ml/bnorm/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(bn.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD[T tensor.Element] struct {
	params     []*nn.Parameter[T]
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter[T]][]float64
	codec      tensor.Codec[T]
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD[T tensor.Element](params []*nn.Parameter[T], config SGDConfig) *SGD[T] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[T]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[T]][]float64),
		codec:      tensor.CodecFor[T](),
	}
}

// Step performs a single optimization step.
func (s *SGD[T]) Step() {
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		data := param.Data()

		if s.momentum == 0 {
			for i, g := range grad {
				data[i] = s.codec.Store(s.codec.Load(data[i]) - s.lr*g)
			}
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = make([]float64, len(data))
			s.velocities[param] = velocity
		}
		for i, g := range grad {
			velocity[i] = s.momentum*velocity[i] + g
			data[i] = s.codec.Store(s.codec.Load(data[i]) - s.lr*velocity[i])
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[T]) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD[T]) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD[T]) SetLR(lr float64) {
	s.lr = lr
}

// StateDict returns the optimizer state for serialization.
//
// State keys: "velocity.{param_index}". Without momentum the map is empty.
func (s *SGD[T]) StateDict() map[string][]float64 {
	state := make(map[string][]float64)
	if s.momentum == 0 {
		return state
	}
	for i, param := range s.params {
		if v, ok := s.velocities[param]; ok {
			state[fmt.Sprintf("velocity.%d", i)] = append([]float64(nil), v...)
		}
	}
	return state
}

// LoadStateDict restores velocity buffers. Missing entries are initialized
// on the next step.
func (s *SGD[T]) LoadStateDict(state map[string][]float64) error {
	if s.momentum == 0 {
		return nil
	}
	s.velocities = make(map[*nn.Parameter[T]][]float64)
	for i, param := range s.params {
		v, ok := state[fmt.Sprintf("velocity.%d", i)]
		if !ok {
			continue
		}
		if len(v) != len(param.Data()) {
			return fmt.Errorf("velocity size mismatch for parameter %d: expected %d, got %d",
				i, len(param.Data()), len(v))
		}
		s.velocities[param] = append([]float64(nil), v...)
	}
	return nil
}
