package batchnorm

import (
	"errors"

	"github.com/born-ml/bnorm/internal/tensor"
)

// Configuration errors. They are returned before any reduction starts.
var (
	ErrInvalidShape    = tensor.ErrInvalidShape
	ErrUnknownMode     = errors.New("unknown batch norm mode")
	ErrBufferSize      = errors.New("element buffer too small for view")
	ErrGroupSize       = errors.New("per-group buffer has wrong length")
	ErrUnpairedStats   = errors.New("mean and variance buffers must be supplied together")
	ErrInvalidEpsilon  = errors.New("epsilon must be finite and non-negative")
	ErrInvalidMomentum = errors.New("momentum must be in [0, 1]")
)
