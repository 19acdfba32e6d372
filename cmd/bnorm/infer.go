package main

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/born-ml/bnorm/internal/nn"
	"github.com/born-ml/bnorm/internal/serialization"
	"github.com/born-ml/bnorm/internal/tensor"
	"github.com/born-ml/bnorm/internal/verify"
	"github.com/spf13/cobra"
	"github.com/x448/float16"
)

var errNoLayer = errors.New("checkpoint has no layer description")

type inferOptions struct {
	problemFlags
	checkpoint  string
	safetensors string
	maxGroups   int
}

func newInferCmd(g *globalOptions) *cobra.Command {
	o := &inferOptions{}
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Normalize a random batch with a checkpoint's frozen statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ckpt, err := serialization.ReadFile(o.checkpoint, serialization.ReaderOptions{})
			if err != nil {
				return err
			}
			meta := ckpt.Header.Layer
			if meta == nil {
				return fmt.Errorf("%s: %w", o.checkpoint, errNoLayer)
			}
			o.fromCheckpoint(cmd, meta)
			p, err := o.resolve()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch p.dtype {
			case tensor.Float64:
				return inferLayer[float64](out, g, p, o, ckpt)
			case tensor.Float32:
				return inferLayer[float32](out, g, p, o, ckpt)
			case tensor.Float16:
				return inferLayer[float16.Float16](out, g, p, o, ckpt)
			default:
				return inferLayer[tensor.BFloat16](out, g, p, o, ckpt)
			}
		},
	}
	o.register(cmd.Flags(), "")
	fs := cmd.Flags()
	fs.StringVar(&o.checkpoint, "checkpoint", "", "checkpoint written by train or run --save")
	fs.StringVar(&o.safetensors, "safetensors", "", "also export the layer state as SafeTensors")
	fs.IntVar(&o.maxGroups, "max-groups", 8, "groups to print (0: all)")
	_ = cmd.MarkFlagRequired("checkpoint")
	return cmd
}

// fromCheckpoint fills every problem flag the user did not set from the
// checkpoint's layer description.
func (o *inferOptions) fromCheckpoint(cmd *cobra.Command, meta *serialization.LayerMeta) {
	fs := cmd.Flags()
	if !fs.Changed("shape") && len(meta.Shape) == 4 {
		o.shape = formatShape(tensor.Shape{N: meta.Shape[0], C: meta.Shape[1], H: meta.Shape[2], W: meta.Shape[3]})
	}
	if !fs.Changed("mode") {
		o.mode = meta.Mode
	}
	if !fs.Changed("dtype") && meta.DType != "" {
		o.dtype = meta.DType
	}
	if !fs.Changed("layout") && meta.Layout != "" {
		o.layout = meta.Layout
	}
	if !fs.Changed("epsilon") {
		o.epsilon = meta.Epsilon
	}
}

func inferLayer[T tensor.Element](out io.Writer, g *globalOptions, p *problem, o *inferOptions, ckpt *serialization.Checkpoint) error {
	meta := ckpt.Header.Layer
	layer := nn.NewBatchNorm[T](nn.BatchNormConfig{
		Mode:              p.mode,
		NumFeatures:       meta.NumFeatures,
		Epsilon:           p.epsilon,
		Momentum:          meta.Momentum,
		TrackRunningStats: true,
		Engine:            g.engineConfig(),
	})

	state := ckpt.Arrays
	if _, ok := state["weight"]; !ok {
		// run --save stores only the running statistics.
		state = layer.StateDict()
		state["running_mean"] = ckpt.Arrays["running_mean"]
		state["running_var"] = ckpt.Arrays["running_var"]
	}
	if err := layer.LoadStateDict(state); err != nil {
		return fmt.Errorf("%s: %w", o.checkpoint, err)
	}
	layer.Eval()

	y, err := layer.Forward(tensor.FromFloat64[T](p.input()), p.view)
	if err != nil {
		return err
	}
	moments, err := verify.GroupMoments(p.mode, p.view, tensor.ToFloat64(y))
	if err != nil {
		return err
	}
	g.logger.Debug("inference", "dtype", tensor.DataTypeOf[T](), "groups", len(moments))

	fmt.Fprintf(out, "%s %s %v groups=%d (frozen statistics from %s)\n",
		tensor.DataTypeOf[T](), p.mode, p.view.Shape, len(moments), o.checkpoint)
	fmt.Fprintf(out, "  %6s %12s %12s %12s %12s\n", "group", "run-mean", "run-var", "out-mean", "out-std")
	for id, m := range moments {
		if o.maxGroups > 0 && id >= o.maxGroups {
			fmt.Fprintf(out, "  ... %d more\n", len(moments)-id)
			break
		}
		fmt.Fprintf(out, "  %6d %12.5g %12.5g %12.5g %12.5g\n",
			id, layer.RunningMean[id], layer.RunningVariance[id], m.Mean, math.Sqrt(m.Variance))
	}

	if o.safetensors != "" {
		err := serialization.WriteSafeTensorsFile(o.safetensors, layer.StateDict(), map[string]string{
			"mode":    p.mode.String(),
			"epsilon": fmt.Sprint(p.epsilon),
		})
		if err != nil {
			return err
		}
		g.logger.Info("exported", "path", o.safetensors)
	}
	return nil
}
