package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/nn"
	"github.com/born-ml/bnorm/internal/optim"
	"github.com/born-ml/bnorm/internal/parallel"
	"github.com/born-ml/bnorm/internal/serialization"
	"github.com/born-ml/bnorm/internal/tensor"
	"github.com/born-ml/bnorm/internal/verify"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/x448/float16"
)

type trainOptions struct {
	problemFlags
	momentum  float64
	optimizer string
	lr        float64
	steps     int
	logEvery  int
	save      string
}

func newTrainCmd(g *globalOptions) *cobra.Command {
	o := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a BatchNorm layer's gamma and beta to a random affine target",
		Long: `train draws a fresh random batch every step, normalizes it with a BatchNorm
layer and regresses the output onto gamma*xhat+beta for a random target
gamma and beta. Running statistics are tracked along the way and can be
saved to a checkpoint for "bnorm infer".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := o.resolve()
			if err != nil {
				return err
			}
			switch p.dtype {
			case tensor.Float64:
				return trainLayer[float64](cmd.OutOrStdout(), g, p, o)
			case tensor.Float32:
				return trainLayer[float32](cmd.OutOrStdout(), g, p, o)
			case tensor.Float16:
				return trainLayer[float16.Float16](cmd.OutOrStdout(), g, p, o)
			default:
				return trainLayer[tensor.BFloat16](cmd.OutOrStdout(), g, p, o)
			}
		},
	}
	o.register(cmd.Flags(), "32,4,4,4")
	fs := cmd.Flags()
	fs.Float64Var(&o.momentum, "momentum", batchnorm.DefaultMomentum, "running statistics momentum")
	fs.StringVar(&o.optimizer, "optimizer", "sgd", "optimizer: sgd or adam")
	fs.Float64Var(&o.lr, "lr", 0.5, "learning rate")
	fs.IntVar(&o.steps, "steps", 300, "training steps")
	fs.IntVar(&o.logEvery, "log-every", 50, "log the loss every n steps (0 disables)")
	fs.StringVar(&o.save, "save", "", "write a checkpoint to this path")
	return cmd
}

// statefulOptimizer is an optimizer whose state can be checkpointed.
type statefulOptimizer interface {
	optim.Optimizer
	StateDict() map[string][]float64
}

func newOptimizer[T tensor.Element](name string, lr float64, params []*nn.Parameter[T]) (statefulOptimizer, error) {
	switch strings.ToLower(name) {
	case "sgd":
		return optim.NewSGD(params, optim.SGDConfig{LR: lr, Momentum: 0.5}), nil
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{LR: lr}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

func trainLayer[T tensor.Element](out io.Writer, g *globalOptions, p *problem, o *trainOptions) error {
	if o.steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", o.steps)
	}
	features := p.groups()
	cfg := nn.BatchNormConfig{
		Mode:              p.mode,
		NumFeatures:       features,
		Epsilon:           p.epsilon,
		Momentum:          o.momentum,
		TrackRunningStats: true,
		Engine:            g.engineConfig(),
	}
	layer := nn.NewBatchNorm[T](cfg)

	// The target shares the layer's normalization, so only gamma and beta
	// separate them.
	targetCfg := cfg
	targetCfg.TrackRunningStats = false
	targetCfg.Engine = batchnorm.Config{Parallel: parallel.Sequential()}
	target := nn.NewBatchNorm[float64](targetCfg)
	copy(target.Gamma.Data(), p.normal(features, 1.5, 0.5))
	copy(target.Beta.Data(), p.normal(features, 0, 1))

	opt, err := newOptimizer(o.optimizer, o.lr, layer.Parameters())
	if err != nil {
		return err
	}
	mse := nn.NewMSELoss[T]()

	var loss float64
	for step := 1; step <= o.steps; step++ {
		x := tensor.FromFloat64[T](p.input())
		want, err := target.Forward(tensor.ToFloat64(x), p.view)
		if err != nil {
			return err
		}
		y, err := layer.Forward(x, p.view)
		if err != nil {
			return err
		}
		var dy []T
		loss, dy, err = mse.Forward(y, tensor.FromFloat64[T](want))
		if err != nil {
			return err
		}
		if _, err := layer.Backward(dy); err != nil {
			return err
		}
		opt.Step()
		opt.ZeroGrad()

		if o.logEvery > 0 && step%o.logEvery == 0 {
			g.logger.Info("train", "step", step, "loss", loss)
		}
	}

	gammaErr, _ := verify.MaxDiff(target.Gamma.Data(), tensor.ToFloat64(layer.Gamma.Data()))
	betaErr, _ := verify.MaxDiff(target.Beta.Data(), tensor.ToFloat64(layer.Beta.Data()))
	meanErr, _ := verify.MaxDiff(lo.Times(features, func(int) float64 { return p.mean }), layer.RunningMean)

	fmt.Fprintf(out, "%s %s %v steps=%d optimizer=%s lr=%g\n",
		tensor.DataTypeOf[T](), p.mode, p.view.Shape, o.steps, o.optimizer, opt.GetLR())
	fmt.Fprintf(out, "  final loss         %.6g\n", loss)
	fmt.Fprintf(out, "  max |gamma error|  %.6g\n", gammaErr)
	fmt.Fprintf(out, "  max |beta error|   %.6g\n", betaErr)
	fmt.Fprintf(out, "  max |running mean - input mean|  %.6g\n", meanErr)

	if o.save == "" {
		return nil
	}
	arrays := layer.StateDict()
	for k, v := range lo.MapKeys(opt.StateDict(), func(_ []float64, k string) string { return "optim." + k }) {
		arrays[k] = v
	}
	header := serialization.Header{
		Metadata: map[string]string{"command": "train"},
		Layer:    layerMeta(p, o.momentum, features),
		CheckpointMeta: &serialization.CheckpointMeta{
			Epoch:           1,
			Step:            int64(o.steps),
			Loss:            loss,
			OptimizerType:   strings.ToUpper(o.optimizer),
			OptimizerConfig: map[string]any{"lr": opt.GetLR()},
		},
	}
	if err := serialization.WriteFile(o.save, arrays, header); err != nil {
		return err
	}
	g.logger.Info("saved checkpoint", "path", o.save, "arrays", len(arrays))
	return nil
}
