package tensor

import "math"

// BFloat16 is the brain floating point format: the upper 16 bits of an
// IEEE 754 float32 (8 exponent bits, 7 mantissa bits).
type BFloat16 uint16

// BFloat16FromFloat32 rounds f to the nearest BFloat16, ties to even.
func BFloat16FromFloat32(f float32) BFloat16 {
	bits := math.Float32bits(f)

	// Quiet the NaN and keep its sign; rounding could turn it into Inf.
	if bits&0x7FFFFFFF > 0x7F800000 {
		return BFloat16((bits >> 16) | 0x0040)
	}

	bits += 0x7FFF + ((bits >> 16) & 1)
	return BFloat16(bits >> 16)
}

// Float32 widens b to float32. The conversion is exact.
func (b BFloat16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// Float64 widens b to float64. The conversion is exact.
func (b BFloat16) Float64() float64 {
	return float64(b.Float32())
}

// IsNaN reports whether b is a NaN.
func (b BFloat16) IsNaN() bool {
	return b&0x7FFF > 0x7F80
}
