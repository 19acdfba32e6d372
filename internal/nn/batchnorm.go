package nn

import (
	"fmt"

	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/tensor"
)

// BatchNormConfig configures a BatchNorm layer.
type BatchNormConfig struct {
	Mode        batchnorm.Mode
	NumFeatures int // number of normalization groups the layer expects

	// Epsilon and Momentum are used as given; zero is a valid value for
	// both (momentum 0 freezes the running statistics). DefaultBatchNormConfig
	// fills in batchnorm.DefaultEpsilon and batchnorm.DefaultMomentum.
	Epsilon  float64
	Momentum float64

	// TrackRunningStats keeps running mean/variance during training and
	// normalizes with them in eval mode. Without it eval mode uses batch
	// statistics.
	TrackRunningStats bool

	Engine batchnorm.Config
}

// DefaultBatchNormConfig returns the usual configuration for a spatial
// batch norm over numFeatures channels.
func DefaultBatchNormConfig(numFeatures int) BatchNormConfig {
	return BatchNormConfig{
		Mode:              batchnorm.Spatial,
		NumFeatures:       numFeatures,
		Epsilon:           batchnorm.DefaultEpsilon,
		Momentum:          batchnorm.DefaultMomentum,
		TrackRunningStats: true,
		Engine:            batchnorm.DefaultConfig(),
	}
}

// BatchNorm applies Batch Normalization over a 4-D input.
//
// Formula: Y = gamma * (X - mean) / sqrt(var + eps) + beta
//
// Where mean and var are taken per channel (Spatial) or per activation
// (PerActivation) over the mini-batch. In training mode the layer uses batch
// statistics and updates its running estimates; in eval mode it normalizes
// with the running estimates.
//
// Example:
//
//	bn := nn.NewBatchNorm[float32](nn.DefaultBatchNormConfig(16))
//	y, err := bn.Forward(x, view)
//	dx, err := bn.Backward(dy)
type BatchNorm[T tensor.Element] struct {
	Gamma *Parameter[T] // learnable scale [num_features]
	Beta  *Parameter[T] // learnable shift [num_features]

	RunningMean     []float64
	RunningVariance []float64

	cfg      BatchNormConfig
	engine   *batchnorm.Engine[T]
	training bool

	// cache of the last training forward, consumed by Backward
	lastX      []T
	lastView   tensor.View
	savedMean  []float64
	savedInvSD []float64
}

// NewBatchNorm creates a BatchNorm layer in training mode with gamma at one,
// beta at zero, running mean at zero and running variance at one.
func NewBatchNorm[T tensor.Element](cfg BatchNormConfig) *BatchNorm[T] {
	bn := &BatchNorm[T]{
		Gamma:    NewParameter("weight", Ones[T](cfg.NumFeatures)),
		Beta:     NewParameter("bias", Zeros[T](cfg.NumFeatures)),
		cfg:      cfg,
		engine:   batchnorm.New[T](cfg.Engine),
		training: true,
	}
	if cfg.TrackRunningStats {
		bn.RunningMean, bn.RunningVariance = batchnorm.NewRunningStats(cfg.NumFeatures)
	}
	return bn
}

// Train switches the layer to training mode.
func (b *BatchNorm[T]) Train() { b.training = true }

// Eval switches the layer to inference mode.
func (b *BatchNorm[T]) Eval() { b.training = false }

// Training reports whether the layer is in training mode.
func (b *BatchNorm[T]) Training() bool { return b.training }

// Config returns the layer configuration.
func (b *BatchNorm[T]) Config() BatchNormConfig { return b.cfg }

// Forward normalizes x, laid out by view, into a new buffer. In training
// mode the layer keeps its own copy of x for Backward, so the caller may
// reuse x afterwards.
func (b *BatchNorm[T]) Forward(x []T, view tensor.View) ([]T, error) {
	if g := batchnorm.NumGroups(b.cfg.Mode, view); g != b.cfg.NumFeatures {
		return nil, fmt.Errorf("%w: %s input %s has %d groups, layer has %d",
			ErrFeatureMismatch, b.cfg.Mode, view.Shape, g, b.cfg.NumFeatures)
	}
	y := make([]T, len(x))

	if !b.training {
		err := b.engine.ForwardInfer(batchnorm.InferArgs[T]{
			Mode: b.cfg.Mode, View: view,
			X: x, Scale: b.Gamma.data, Bias: b.Beta.data, Y: y,
			Epsilon:           b.cfg.Epsilon,
			EstimatedMean:     b.RunningMean,
			EstimatedVariance: b.RunningVariance,
		})
		if err != nil {
			return nil, err
		}
		return y, nil
	}

	mean := make([]float64, b.cfg.NumFeatures)
	invSD := make([]float64, b.cfg.NumFeatures)
	err := b.engine.ForwardTrain(batchnorm.TrainArgs[T]{
		Mode: b.cfg.Mode, View: view,
		X: x, Scale: b.Gamma.data, Bias: b.Beta.data, Y: y,
		Epsilon:          b.cfg.Epsilon,
		Momentum:         b.cfg.Momentum,
		SavedMean:        mean,
		SavedInvVariance: invSD,
		RunningMean:      b.RunningMean,
		RunningVariance:  b.RunningVariance,
	})
	if err != nil {
		return nil, err
	}
	b.lastX = append(b.lastX[:0], x...)
	b.lastView = view
	b.savedMean, b.savedInvSD = mean, invSD
	return y, nil
}

// Backward computes the input gradient for the last training forward and
// stores the gamma and beta gradients on the parameters.
func (b *BatchNorm[T]) Backward(dy []T) ([]T, error) {
	if b.lastX == nil {
		return nil, ErrNoForward
	}
	dx := make([]T, len(dy))
	dGamma := make([]float64, b.cfg.NumFeatures)
	dBeta := make([]float64, b.cfg.NumFeatures)
	err := b.engine.Backward(batchnorm.BackwardArgs[T]{
		Mode: b.cfg.Mode, View: b.lastView,
		X: b.lastX, DY: dy, Scale: b.Gamma.data,
		SavedMean:        b.savedMean,
		SavedInvVariance: b.savedInvSD,
		Epsilon:          b.cfg.Epsilon,
		DX:               dx,
		DScale:           dGamma,
		DBias:            dBeta,
	})
	if err != nil {
		return nil, err
	}
	b.Gamma.SetGrad(dGamma)
	b.Beta.SetGrad(dBeta)
	return dx, nil
}

// Parameters returns gamma and beta.
func (b *BatchNorm[T]) Parameters() []*Parameter[T] {
	return []*Parameter[T]{b.Gamma, b.Beta}
}

// StateDict returns the layer state as float64 arrays keyed by name:
// weight, bias and, when tracked, running_mean and running_var.
func (b *BatchNorm[T]) StateDict() map[string][]float64 {
	state := map[string][]float64{
		"weight": tensor.ToFloat64(b.Gamma.data),
		"bias":   tensor.ToFloat64(b.Beta.data),
	}
	if b.RunningMean != nil {
		state["running_mean"] = append([]float64(nil), b.RunningMean...)
		state["running_var"] = append([]float64(nil), b.RunningVariance...)
	}
	return state
}

// LoadStateDict restores a state produced by StateDict. Every entry the
// layer owns must be present with NumFeatures values.
func (b *BatchNorm[T]) LoadStateDict(state map[string][]float64) error {
	keys := []string{"weight", "bias"}
	if b.RunningMean != nil {
		keys = append(keys, "running_mean", "running_var")
	}
	for _, k := range keys {
		v, ok := state[k]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingState, k)
		}
		if len(v) != b.cfg.NumFeatures {
			return fmt.Errorf("%w: %q has %d values, want %d", ErrFeatureMismatch, k, len(v), b.cfg.NumFeatures)
		}
	}

	copy(b.Gamma.data, tensor.FromFloat64[T](state["weight"]))
	copy(b.Beta.data, tensor.FromFloat64[T](state["bias"]))
	if b.RunningMean != nil {
		copy(b.RunningMean, state["running_mean"])
		copy(b.RunningVariance, state["running_var"])
	}
	return nil
}
