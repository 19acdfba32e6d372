package main

import (
	"fmt"
	"io"
	"time"

	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/parallel"
	"github.com/born-ml/bnorm/internal/serialization"
	"github.com/born-ml/bnorm/internal/tensor"
	"github.com/born-ml/bnorm/internal/verify"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/x448/float16"
)

type runOptions struct {
	problemFlags
	momentum float64
	tol      float64
	save     string
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one forward/backward pass on random data and verify it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := o.resolve()
			if err != nil {
				return err
			}
			return dispatchRun(cmd.OutOrStdout(), g, p, o)
		},
	}
	o.register(cmd.Flags(), "4,8,8,8")
	cmd.Flags().Float64Var(&o.momentum, "momentum", batchnorm.DefaultMomentum, "running statistics momentum")
	cmd.Flags().Float64Var(&o.tol, "tol", 0, "absolute tolerance (0: chosen by dtype)")
	cmd.Flags().StringVar(&o.save, "save", "", "write the running statistics to this checkpoint")
	return cmd
}

func dispatchRun(out io.Writer, g *globalOptions, p *problem, o *runOptions) error {
	switch p.dtype {
	case tensor.Float64:
		return runPass[float64](out, g, p, o)
	case tensor.Float32:
		return runPass[float32](out, g, p, o)
	case tensor.Float16:
		return runPass[float16.Float16](out, g, p, o)
	default:
		return runPass[tensor.BFloat16](out, g, p, o)
	}
}

// defaultTolerance is the absolute tolerance for outputs rounded to dt.
func defaultTolerance(dt tensor.DataType) float64 {
	switch dt {
	case tensor.Float64:
		return 1e-9
	case tensor.Float32:
		return 1e-4
	case tensor.Float16:
		return 2e-2
	default:
		return 1.5e-1
	}
}

// runPass runs ForwardTrain and Backward in storage type T with the
// configured engine and compares every output with a sequential float64
// run on the same (rounded) inputs.
func runPass[T tensor.Element](out io.Writer, g *globalOptions, p *problem, o *runOptions) error {
	groups := p.groups()
	n := p.view.Len()

	x := tensor.FromFloat64[T](p.input())
	scale := tensor.FromFloat64[T](p.normal(groups, 1, 0.25))
	bias := tensor.FromFloat64[T](p.normal(groups, 0, 0.5))
	dy := tensor.FromFloat64[T](p.normal(n, 0, 1))

	y := make([]T, n)
	dx := make([]T, n)
	savedMean := make([]float64, groups)
	savedInv := make([]float64, groups)
	runMean, runVar := batchnorm.NewRunningStats(groups)
	dscale := make([]float64, groups)
	dbias := make([]float64, groups)

	eng := batchnorm.New[T](g.engineConfig())
	g.logger.Debug("engine", "dtype", eng.DType(), "mode", p.mode, "shape", p.view.Shape,
		"layout", p.layout, "groups", groups, "workers", eng.Config().Parallel.NumWorkers)

	start := time.Now()
	err := eng.ForwardTrain(batchnorm.TrainArgs[T]{
		Mode: p.mode, View: p.view,
		X: x, Scale: scale, Bias: bias, Y: y,
		Epsilon: p.epsilon, Momentum: o.momentum,
		SavedMean: savedMean, SavedInvVariance: savedInv,
		RunningMean: runMean, RunningVariance: runVar,
	})
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}
	fwd := time.Since(start)

	start = time.Now()
	err = eng.Backward(batchnorm.BackwardArgs[T]{
		Mode: p.mode, View: p.view,
		X: x, DY: dy, Scale: scale,
		SavedMean: savedMean, SavedInvVariance: savedInv,
		DX: dx, DScale: dscale, DBias: dbias,
	})
	if err != nil {
		return fmt.Errorf("backward: %w", err)
	}
	bwd := time.Since(start)
	g.logger.Info("pass complete", "forward", fwd, "backward", bwd)

	ref, err := referencePass(p, o.momentum,
		tensor.ToFloat64(x), tensor.ToFloat64(scale), tensor.ToFloat64(bias), tensor.ToFloat64(dy))
	if err != nil {
		return err
	}
	moments, err := verify.GroupMoments(p.mode, p.view, tensor.ToFloat64(x))
	if err != nil {
		return err
	}

	tol := o.tol
	if tol <= 0 {
		tol = defaultTolerance(p.dtype)
	}
	checks := []check{
		{"mean", verify.Compare(lo.Map(moments, func(m batchnorm.Moments, _ int) float64 { return m.Mean }), savedMean)},
		{"inv-variance", verify.Compare(ref.invVar, savedInv)},
		{"running-mean", verify.Compare(ref.runMean, runMean)},
		{"running-var", verify.Compare(ref.runVar, runVar)},
		{"y", verify.Compare(ref.y, tensor.ToFloat64(y))},
		{"dx", verify.Compare(ref.dx, tensor.ToFloat64(dx))},
		{"dscale", verify.Compare(ref.dscale, dscale)},
		{"dbias", verify.Compare(ref.dbias, dbias)},
	}

	fmt.Fprintf(out, "%s %s %s %v groups=%d size=%d tol=%g\n",
		eng.DType(), p.mode, p.layout, p.view.Shape, groups, n/groups, tol)
	failed := lo.FilterMap(checks, func(c check, _ int) (string, bool) {
		ok := c.report.OK(tol)
		status := "ok"
		if !ok {
			status = "FAIL"
		}
		fmt.Fprintf(out, "  %-13s %-4s %s\n", c.name, status, c.report)
		return c.name, !ok
	})

	if o.save != "" {
		err := serialization.WriteFile(o.save, map[string][]float64{
			"running_mean": runMean,
			"running_var":  runVar,
		}, serialization.Header{Layer: layerMeta(p, o.momentum, groups)})
		if err != nil {
			return err
		}
		g.logger.Info("saved running statistics", "path", o.save)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %v", errVerificationFailed, failed)
	}
	return nil
}

// check is one named comparison printed by run.
type check struct {
	name   string
	report verify.Report
}

type referenceResult struct {
	y, dx         []float64
	invVar        []float64
	runMean       []float64
	runVar        []float64
	dscale, dbias []float64
}

// referencePass computes the same pass in float64 on one goroutine.
func referencePass(p *problem, momentum float64, x, scale, bias, dy []float64) (*referenceResult, error) {
	groups := p.groups()
	r := &referenceResult{
		y:      make([]float64, len(x)),
		dx:     make([]float64, len(x)),
		invVar: make([]float64, groups),
		dscale: make([]float64, groups),
		dbias:  make([]float64, groups),
	}
	r.runMean, r.runVar = batchnorm.NewRunningStats(groups)
	mean := make([]float64, groups)

	eng := batchnorm.New[float64](batchnorm.Config{Parallel: parallel.Sequential()})
	err := eng.ForwardTrain(batchnorm.TrainArgs[float64]{
		Mode: p.mode, View: p.view,
		X: x, Scale: scale, Bias: bias, Y: r.y,
		Epsilon: p.epsilon, Momentum: momentum,
		SavedMean: mean, SavedInvVariance: r.invVar,
		RunningMean: r.runMean, RunningVariance: r.runVar,
	})
	if err != nil {
		return nil, fmt.Errorf("reference forward: %w", err)
	}
	err = eng.Backward(batchnorm.BackwardArgs[float64]{
		Mode: p.mode, View: p.view,
		X: x, DY: dy, Scale: scale,
		SavedMean: mean, SavedInvVariance: r.invVar,
		DX: r.dx, DScale: r.dscale, DBias: r.dbias,
	})
	if err != nil {
		return nil, fmt.Errorf("reference backward: %w", err)
	}
	return r, nil
}

// layerMeta describes the problem for a checkpoint header.
func layerMeta(p *problem, momentum float64, groups int) *serialization.LayerMeta {
	s := p.view.Shape
	return &serialization.LayerMeta{
		Mode:        p.mode.String(),
		NumFeatures: groups,
		Epsilon:     p.epsilon,
		Momentum:    momentum,
		DType:       p.dtype.String(),
		Layout:      p.layout.String(),
		Shape:       []int{s.N, s.C, s.H, s.W},
	}
}
