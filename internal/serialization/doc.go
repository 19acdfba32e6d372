// Package serialization stores batch-norm state in the .born container.
//
// A checkpoint holds named float64 arrays (affine parameters, running
// statistics, optimizer buffers) together with a JSON header describing
// the layer that produced them:
//
//	Format Structure (v2):
//	  [0x00: Magic "BORN"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x0C: Reserved]
//	  [0x10: Header Size (uint64 LE)]
//	  [0x18: Data Size (uint64 LE)]
//	  [0x20: SHA-256 of the data section]
//	  [0x40: Header: JSON metadata]
//	  [Array data: float64 LE, 64-byte aligned]
//
// Example usage:
//
//	err := serialization.WriteFile("bn.born", bn.StateDict(), serialization.Header{
//	    Layer: &serialization.LayerMeta{Mode: "spatial", NumFeatures: 16},
//	})
//
//	ckpt, err := serialization.ReadFile("bn.born", serialization.ReaderOptions{})
//	err = bn.LoadStateDict(ckpt.Arrays)
package serialization
