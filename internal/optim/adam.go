package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/bnorm/internal/nn"
	"github.com/born-ml/bnorm/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[T tensor.Element] struct {
	params []*nn.Parameter[T]
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int                            // Timestep for bias correction
	m      map[*nn.Parameter[T]][]float64 // First moment estimates
	v      map[*nn.Parameter[T]][]float64 // Second moment estimates
	codec  tensor.Codec[T]
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer with default hyperparameters for
// any zero field.
func NewAdam[T tensor.Element](params []*nn.Parameter[T], config AdamConfig) *Adam[T] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[T]{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter[T]][]float64),
		v:      make(map[*nn.Parameter[T]][]float64),
		codec:  tensor.CodecFor[T](),
	}
}

// Step performs a single optimization step.
func (a *Adam[T]) Step() {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		data := param.Data()

		m, ok := a.m[param]
		if !ok {
			m = make([]float64, len(data))
			a.m[param] = m
			a.v[param] = make([]float64, len(data))
		}
		v := a.v[param]

		for i, g := range grad {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			data[i] = a.codec.Store(a.codec.Load(data[i]) - a.lr*mHat/(math.Sqrt(vHat)+a.eps))
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[T]) ZeroGrad() {
	zeroGrad(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam[T]) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[T]) SetLR(lr float64) {
	a.lr = lr
}

// StateDict returns the moment buffers and the timestep.
//
// State keys: "m.{param_index}", "v.{param_index}", "t".
func (a *Adam[T]) StateDict() map[string][]float64 {
	state := map[string][]float64{"t": {float64(a.t)}}
	for i, param := range a.params {
		if m, ok := a.m[param]; ok {
			state[fmt.Sprintf("m.%d", i)] = append([]float64(nil), m...)
			state[fmt.Sprintf("v.%d", i)] = append([]float64(nil), a.v[param]...)
		}
	}
	return state
}

// LoadStateDict restores the moment buffers and the timestep.
func (a *Adam[T]) LoadStateDict(state map[string][]float64) error {
	if t, ok := state["t"]; ok && len(t) == 1 {
		a.t = int(t[0])
	}
	a.m = make(map[*nn.Parameter[T]][]float64)
	a.v = make(map[*nn.Parameter[T]][]float64)
	for i, param := range a.params {
		m, okM := state[fmt.Sprintf("m.%d", i)]
		v, okV := state[fmt.Sprintf("v.%d", i)]
		if !okM || !okV {
			continue
		}
		if len(m) != len(param.Data()) || len(v) != len(param.Data()) {
			return fmt.Errorf("moment size mismatch for parameter %d: expected %d, got %d/%d",
				i, len(param.Data()), len(m), len(v))
		}
		a.m[param] = append([]float64(nil), m...)
		a.v[param] = append([]float64(nil), v...)
	}
	return nil
}
