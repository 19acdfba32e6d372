// Command bnorm drives the batch-normalization engine from the command line.
//
// Usage:
//
//	bnorm info
//	bnorm run --shape 8,16,14,14 --mode spatial --dtype float16
//	bnorm train --shape 32,8,4,4 --steps 500 --save bn.born
//	bnorm infer --checkpoint bn.born --safetensors stats.safetensors
//	bnorm inspect bn.born
//
// run executes one training forward and backward pass on random data and
// verifies every output against a float64 reference. train fits the affine
// parameters of a BatchNorm layer to a random target map while tracking
// running statistics. infer normalizes a fresh batch with a checkpoint's
// frozen statistics.
package main

import "os"

// version is the CLI release, overridable at link time.
var version = "v0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
