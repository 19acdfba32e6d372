package batchnorm

import "github.com/born-ml/bnorm/internal/tensor"

// Engine runs batch normalization over element buffers of type T.
//
// An Engine holds no per-call state and is safe for concurrent use, as long
// as concurrent calls do not write the same running-statistics entries.
type Engine[T tensor.Element] struct {
	cfg   Config
	codec tensor.Codec[T]
}

// New creates an engine. Zero fields in cfg fall back to safe values.
func New[T tensor.Element](cfg Config) *Engine[T] {
	if cfg.Blocks <= 0 {
		cfg.Blocks = 32
	}
	if cfg.Parallel.NumWorkers <= 0 {
		cfg.Parallel.NumWorkers = 1
	}
	if cfg.Parallel.MinChunkSize <= 0 {
		cfg.Parallel.MinChunkSize = 1
	}
	return &Engine[T]{cfg: cfg, codec: tensor.CodecFor[T]()}
}

// Config returns the effective configuration.
func (e *Engine[T]) Config() Config {
	return e.cfg
}

// DType returns the storage type the engine reads and writes.
func (e *Engine[T]) DType() tensor.DataType {
	return e.codec.DType
}

// blocked reports whether groups of g are reduced with partial
// accumulators instead of being distributed across workers whole. The
// choice depends on the group size only, never on the worker count, so a
// given Config yields the same bits on every machine.
func (e *Engine[T]) blocked(g Grouping) bool {
	return e.cfg.BlockedMinGroup > 0 && g.Size() >= e.cfg.BlockedMinGroup
}
