// Package parallel provides parallel execution utilities for the engine's
// per-group work.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
// It returns only after every f(i) has returned.
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForRange splits [0, n) into contiguous chunks and runs f on each.
// Chunks never overlap, so f may own per-chunk scratch memory.
func ForRange(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	workers := max(cfg.NumWorkers, 1)
	if !cfg.Enabled || workers == 1 || n < 2*max(cfg.MinChunkSize, 1) {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+workers-1)/workers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// MaxReduceWidth is the largest number of sums ReduceVec can carry per block.
const MaxReduceWidth = 4

// partial holds one block's accumulators on their own cache line.
type partial struct {
	acc [MaxReduceWidth]float64
	_   cpu.CacheLinePad
}

// Reduce sums f over [0, n) split into a fixed number of contiguous blocks.
//
// Each block produces a partial sum; partials are combined in block order.
// The block count does not depend on the worker count, so the result is
// bit-identical whether or not the blocks ran concurrently.
func Reduce(n, blocks int, f func(start, end int) float64, cfg Config) float64 {
	var out [1]float64
	ReduceVec(n, blocks, out[:], func(start, end int, acc []float64) {
		acc[0] = f(start, end)
	}, cfg)
	return out[0]
}

// ReduceVec is Reduce for up to MaxReduceWidth sums at once. f adds its
// block's contributions into acc, which starts zeroed; the block totals are
// written to out in block order.
func ReduceVec(n, blocks int, out []float64, f func(start, end int, acc []float64), cfg Config) {
	width := len(out)
	if width > MaxReduceWidth {
		panic("parallel: reduce width exceeds MaxReduceWidth")
	}
	clear(out)
	if n <= 0 {
		return
	}
	blocks = max(min(blocks, n), 1)
	size := (n + blocks - 1) / blocks
	blocks = (n + size - 1) / size

	partials := make([]partial, blocks)
	For(blocks, func(b int) {
		start := b * size
		f(start, min(start+size, n), partials[b].acc[:width])
	}, cfg)

	for i := range partials {
		for k := range width {
			out[k] += partials[i].acc[k]
		}
	}
}
