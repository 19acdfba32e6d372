package optim_test

import (
	"math"
	"testing"

	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/nn"
	"github.com/born-ml/bnorm/internal/optim"
	"github.com/born-ml/bnorm/internal/parallel"
	"github.com/born-ml/bnorm/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks.
var (
	_ optim.Optimizer = (*optim.SGD[float32])(nil)
	_ optim.Optimizer = (*optim.Adam[float64])(nil)
)

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	param := nn.NewParameter("x", []float32{2.0})
	optimizer := optim.NewSGD([]*nn.Parameter[float32]{param}, optim.SGDConfig{LR: 0.5})

	param.SetGrad([]float64{1.0})
	optimizer.Step()

	// x = 2.0 - 0.5 * 1.0 = 1.5
	assert.Equal(t, float32(1.5), param.Data()[0])
	assert.Empty(t, optimizer.StateDict())
}

// TestSGD_WithMomentum tests SGD with momentum across two steps.
func TestSGD_WithMomentum(t *testing.T) {
	param := nn.NewParameter("x", []float64{1.0})
	optimizer := optim.NewSGD([]*nn.Parameter[float64]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	param.SetGrad([]float64{1.0})
	optimizer.Step()
	// v = 1, x = 1 - 0.1 = 0.9
	assert.InDelta(t, 0.9, param.Data()[0], 1e-12)

	optimizer.Step()
	// v = 0.9 + 1 = 1.9, x = 0.9 - 0.19 = 0.71
	assert.InDelta(t, 0.71, param.Data()[0], 1e-12)

	state := optimizer.StateDict()
	require.Contains(t, state, "velocity.0")
	assert.InDelta(t, 1.9, state["velocity.0"][0], 1e-12)

	restored := optim.NewSGD([]*nn.Parameter[float64]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, state, restored.StateDict())

	assert.Error(t, restored.LoadStateDict(map[string][]float64{"velocity.0": {1, 2}}))
}

// TestSGD_SkipsMissingGradients tests that parameters without a gradient
// are left alone and ZeroGrad clears gradients.
func TestSGD_SkipsMissingGradients(t *testing.T) {
	a := nn.NewParameter("a", []float64{1})
	b := nn.NewParameter("b", []float64{1})
	optimizer := optim.NewSGD([]*nn.Parameter[float64]{a, b}, optim.SGDConfig{})
	assert.InDelta(t, 0.01, optimizer.GetLR(), 1e-15)

	a.SetGrad([]float64{10})
	optimizer.Step()
	assert.InDelta(t, 0.9, a.Data()[0], 1e-12)
	assert.Equal(t, 1.0, b.Data()[0])

	optimizer.ZeroGrad()
	assert.Nil(t, a.Grad())

	optimizer.SetLR(0.5)
	assert.Equal(t, 0.5, optimizer.GetLR())
}

// TestAdam_FirstStep tests that the bias-corrected first step moves each
// parameter by lr against the gradient sign.
func TestAdam_FirstStep(t *testing.T) {
	param := nn.NewParameter("x", []float64{1.0, 1.0})
	optimizer := optim.NewAdam([]*nn.Parameter[float64]{param}, optim.AdamConfig{LR: 0.1})

	param.SetGrad([]float64{2.0, -0.5})
	optimizer.Step()

	assert.InDelta(t, 0.9, param.Data()[0], 1e-6)
	assert.InDelta(t, 1.1, param.Data()[1], 1e-6)

	state := optimizer.StateDict()
	assert.Equal(t, []float64{1}, state["t"])

	restored := optim.NewAdam([]*nn.Parameter[float64]{param}, optim.AdamConfig{LR: 0.1})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, state, restored.StateDict())
}

// TestConvergence_BatchNormAffine fits gamma and beta of a BatchNorm layer
// to a target affine map of the normalized input.
func TestConvergence_BatchNormAffine(t *testing.T) {
	tests := []struct {
		name    string
		maxLoss float64
		delta   float64
	}{
		{"sgd", 1e-8, 1e-3},
		{"adam", 1e-3, 5e-2},
	}
	for _, tt := range tests {
		name := tt.name
		t.Run(name, func(t *testing.T) {
			cfg := nn.DefaultBatchNormConfig(2)
			cfg.Engine = batchnorm.Config{Parallel: parallel.Sequential()}
			bn := nn.NewBatchNorm[float64](cfg)

			view := tensor.NewView(tensor.Shape{N: 4, C: 2, H: 2, W: 1}, tensor.NCHW)
			x := make([]float64, view.Len())
			for i := range x {
				x[i] = math.Sin(float64(i)) * 3
			}

			// target = 2*xhat - 1 on channel 0 and 0.5*xhat + 3 on channel 1.
			ref := nn.NewBatchNorm[float64](cfg)
			xhat, err := ref.Forward(x, view)
			require.NoError(t, err)
			target := make([]float64, len(x))
			for i := range target {
				if (i/2)%2 == 0 {
					target[i] = 2*xhat[i] - 1
				} else {
					target[i] = 0.5*xhat[i] + 3
				}
			}

			var opt optim.Optimizer
			if name == "sgd" {
				opt = optim.NewSGD(bn.Parameters(), optim.SGDConfig{LR: 0.5, Momentum: 0.5})
			} else {
				opt = optim.NewAdam(bn.Parameters(), optim.AdamConfig{LR: 0.05})
			}
			mse := nn.NewMSELoss[float64]()

			for range 2000 {
				y, err := bn.Forward(x, view)
				require.NoError(t, err)
				_, dy, err := mse.Forward(y, target)
				require.NoError(t, err)
				_, err = bn.Backward(dy)
				require.NoError(t, err)
				opt.Step()
				opt.ZeroGrad()
			}
			y, err := bn.Forward(x, view)
			require.NoError(t, err)
			loss, _, err := mse.Forward(y, target)
			require.NoError(t, err)

			assert.Less(t, loss, tt.maxLoss)
			assert.InDelta(t, 2, bn.Gamma.Data()[0], tt.delta)
			assert.InDelta(t, -1, bn.Beta.Data()[0], tt.delta)
			assert.InDelta(t, 0.5, bn.Gamma.Data()[1], tt.delta)
			assert.InDelta(t, 3, bn.Beta.Data()[1], tt.delta)
		})
	}
}
