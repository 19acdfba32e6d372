package tensor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidShape is returned for views with a non-positive dimension.
var ErrInvalidShape = errors.New("invalid shape")

// Layout is the physical ordering of the four logical dimensions.
type Layout int

// Supported layouts.
const (
	NCHW Layout = iota
	NHWC
)

// String returns the conventional name of the layout.
func (l Layout) String() string {
	switch l {
	case NCHW:
		return "NCHW"
	case NHWC:
		return "NHWC"
	default:
		return "unknown"
	}
}

// ParseLayout parses "nchw" or "nhwc", case-insensitively.
func ParseLayout(s string) (Layout, bool) {
	switch strings.ToUpper(s) {
	case "NCHW":
		return NCHW, true
	case "NHWC":
		return NHWC, true
	default:
		return 0, false
	}
}

// Shape is the logical (N, C, H, W) extent of a 4-D tensor.
type Shape struct {
	N, C, H, W int
}

// NumElements returns N*C*H*W.
func (s Shape) NumElements() int {
	return s.N * s.C * s.H * s.W
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	dims := [4]int{s.N, s.C, s.H, s.W}
	for i, dim := range dims {
		if dim <= 0 {
			return fmt.Errorf("%w: dimension %c is %d (must be > 0)", ErrInvalidShape, "NCHW"[i], dim)
		}
	}
	return nil
}

// String formats the shape as NxCxHxW.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%dx%d", s.N, s.C, s.H, s.W)
}

// View addresses a flat buffer as a logical (N, C, H, W) tensor.
//
// Element (n, c, h, w) lives at n*NStride + c*CStride + h*HStride + w*WStride.
// Everything the engine does goes through Offset; nothing depends on the
// physical order beyond these strides.
type View struct {
	Shape
	NStride, CStride, HStride, WStride int
}

// NewView returns a dense view of shape s in the given layout.
//
// For NCHW: NStride = C*H*W, CStride = H*W, HStride = W, WStride = 1.
// For NHWC: NStride = H*W*C, HStride = W*C, WStride = C, CStride = 1.
func NewView(s Shape, layout Layout) View {
	v := View{Shape: s}
	switch layout {
	case NHWC:
		v.WStride = s.C
		v.HStride = s.W * s.C
		v.NStride = s.H * s.W * s.C
		v.CStride = 1
	default:
		v.WStride = 1
		v.HStride = s.W
		v.CStride = s.H * s.W
		v.NStride = s.C * s.H * s.W
	}
	return v
}

// Offset returns the linear index of element (n, c, h, w).
func (v View) Offset(n, c, h, w int) int {
	return n*v.NStride + c*v.CStride + h*v.HStride + w*v.WStride
}

// Len returns the minimum buffer length the view addresses.
func (v View) Len() int {
	return v.Offset(v.N-1, v.C-1, v.H-1, v.W-1) + 1
}

// Validate checks the shape and that no stride is negative.
func (v View) Validate() error {
	if err := v.Shape.Validate(); err != nil {
		return err
	}
	if v.NStride < 0 || v.CStride < 0 || v.HStride < 0 || v.WStride < 0 {
		return fmt.Errorf("%w: negative stride in %+v", ErrInvalidShape, v)
	}
	return nil
}
