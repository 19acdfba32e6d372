package nn

import "errors"

// Common errors.
var (
	ErrFeatureMismatch = errors.New("input does not match the layer's feature count")
	ErrNoForward       = errors.New("backward called without a preceding training forward")
	ErrMissingState    = errors.New("state dict entry missing")
	ErrShapeMismatch   = errors.New("predictions and targets differ in length")
)
