package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/born-ml/bnorm/internal/batchnorm"
	"github.com/born-ml/bnorm/internal/tensor"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

// problemFlags describe the tensor a command works on.
type problemFlags struct {
	shape   string
	layout  string
	mode    string
	dtype   string
	epsilon float64
	seed    int64
	mean    float64
	std     float64
}

func (p *problemFlags) register(fs *pflag.FlagSet, defaultShape string) {
	fs.StringVar(&p.shape, "shape", defaultShape, "tensor shape as N,C,H,W")
	fs.StringVar(&p.layout, "layout", "nchw", "memory layout: nchw or nhwc")
	fs.StringVar(&p.mode, "mode", "spatial", "normalization mode: spatial or per-activation")
	fs.StringVar(&p.dtype, "dtype", "float32", "storage type: float64, float32, float16 or bfloat16")
	fs.Float64Var(&p.epsilon, "epsilon", batchnorm.DefaultEpsilon, "variance epsilon")
	fs.Int64Var(&p.seed, "seed", 1, "random seed")
	fs.Float64Var(&p.mean, "input-mean", 0, "mean of the random input")
	fs.Float64Var(&p.std, "input-std", 1, "standard deviation of the random input")
}

// problem is the parsed form of problemFlags.
type problem struct {
	mode    batchnorm.Mode
	view    tensor.View
	layout  tensor.Layout
	dtype   tensor.DataType
	epsilon float64
	mean    float64
	std     float64
	rng     *rand.Rand
}

func (p *problemFlags) resolve() (*problem, error) {
	shape, err := parseShape(p.shape)
	if err != nil {
		return nil, err
	}
	layout, ok := tensor.ParseLayout(p.layout)
	if !ok {
		return nil, fmt.Errorf("unknown layout %q", p.layout)
	}
	mode, err := batchnorm.ParseMode(p.mode)
	if err != nil {
		return nil, err
	}
	dtype, ok := tensor.ParseDataType(p.dtype)
	if !ok {
		return nil, fmt.Errorf("unknown dtype %q", p.dtype)
	}
	return &problem{
		mode:    mode,
		view:    tensor.NewView(shape, layout),
		layout:  layout,
		dtype:   dtype,
		epsilon: p.epsilon,
		mean:    p.mean,
		std:     p.std,
		rng:     rand.New(rand.NewSource(p.seed)),
	}, nil
}

// groups returns the number of normalization groups of the problem.
func (p *problem) groups() int {
	return batchnorm.NumGroups(p.mode, p.view)
}

// normal returns n samples from N(mean, std^2).
func (p *problem) normal(n int, mean, std float64) []float64 {
	return lo.Times(n, func(int) float64 {
		return p.rng.NormFloat64()*std + mean
	})
}

// input returns a random element buffer for the problem's view.
func (p *problem) input() []float64 {
	return p.normal(p.view.Len(), p.mean, p.std)
}

// parseShape parses "N,C,H,W". Missing trailing dimensions default to 1.
func parseShape(s string) (tensor.Shape, error) {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	parts = lo.Compact(parts)
	if len(parts) == 0 || len(parts) > 4 {
		return tensor.Shape{}, fmt.Errorf("shape %q: want 1 to 4 comma-separated dimensions", s)
	}

	dims := [4]int{1, 1, 1, 1}
	for i, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return tensor.Shape{}, fmt.Errorf("shape %q: %w", s, err)
		}
		dims[i] = d
	}
	shape := tensor.Shape{N: dims[0], C: dims[1], H: dims[2], W: dims[3]}
	if err := shape.Validate(); err != nil {
		return tensor.Shape{}, err
	}
	return shape, nil
}

// formatShape is the inverse of parseShape.
func formatShape(s tensor.Shape) string {
	return fmt.Sprintf("%d,%d,%d,%d", s.N, s.C, s.H, s.W)
}
