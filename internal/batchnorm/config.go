package batchnorm

import "github.com/born-ml/bnorm/internal/parallel"

// Default hyperparameters, matching the usual framework defaults.
const (
	DefaultEpsilon  = 1e-5
	DefaultMomentum = 0.1
)

// Config controls how the engine schedules work. It carries no numeric
// hyperparameters; those are passed per call.
type Config struct {
	// Parallel distributes independent groups across workers.
	Parallel parallel.Config

	// BlockedMinGroup is the group size from which a group is split into
	// Blocks partial accumulators. Groups are then processed one after
	// another with the blocks of each running concurrently. Zero disables
	// the blocked path.
	BlockedMinGroup int

	// Blocks is the number of partial accumulators per group on the blocked
	// path (default: 32).
	Blocks int
}

// DefaultConfig returns a parallel configuration sized to the machine.
func DefaultConfig() Config {
	return Config{
		Parallel:        parallel.DefaultConfig(),
		BlockedMinGroup: 1 << 14,
		Blocks:          32,
	}
}
