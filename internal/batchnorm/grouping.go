package batchnorm

import (
	"fmt"
	"strings"

	"github.com/born-ml/bnorm/internal/tensor"
)

// Mode selects the reduction grouping.
type Mode int

// Supported modes.
const (
	// PerActivation keeps one statistics pair per (c, h, w) coordinate.
	PerActivation Mode = iota
	// Spatial keeps one statistics pair per channel.
	Spatial
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case PerActivation:
		return "per-activation"
	case Spatial:
		return "spatial"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "per-activation" (or "peract") and "spatial".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "per-activation", "peractivation", "peract", "per_activation":
		return PerActivation, nil
	case "spatial":
		return Spatial, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Grouping maps reduction groups to buffer offsets.
//
// Group ids are dense in [0, Groups()) and double as the index into every
// per-group array (scale, bias, statistics, gradients).
type Grouping interface {
	Mode() Mode
	// Groups returns the number of reduction groups.
	Groups() int
	// Size returns the number of members of every group (M).
	Size() int
	// Offsets writes the buffer offsets of group g's members into dst,
	// which must have room for Size() entries, and returns dst[:Size()].
	Offsets(g int, dst []int) []int
	// GroupOf returns the group of the element at logical position p, where
	// p enumerates (n, c, h, w) in row-major order.
	GroupOf(p int) int
}

// NewGrouping returns the grouping strategy for mode over view.
func NewGrouping(mode Mode, view tensor.View) (Grouping, error) {
	if err := view.Validate(); err != nil {
		return nil, err
	}
	switch mode {
	case PerActivation:
		return perActivation{view}, nil
	case Spatial:
		return spatial{view}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
}

// NumGroups returns the length every per-group array must have for mode
// over view: C*H*W for PerActivation, C for Spatial. It returns 0 for an
// unknown mode.
func NumGroups(mode Mode, view tensor.View) int {
	switch mode {
	case PerActivation:
		return view.C * view.H * view.W
	case Spatial:
		return view.C
	default:
		return 0
	}
}

// perActivation groups the N elements sharing one (c, h, w).
type perActivation struct {
	v tensor.View
}

func (perActivation) Mode() Mode { return PerActivation }

func (p perActivation) Groups() int { return p.v.C * p.v.H * p.v.W }

func (p perActivation) Size() int { return p.v.N }

func (p perActivation) Offsets(g int, dst []int) []int {
	hw := p.v.H * p.v.W
	c, h, w := g/hw, (g%hw)/p.v.W, g%p.v.W
	base := p.v.Offset(0, c, h, w)
	dst = dst[:p.v.N]
	for n := range dst {
		dst[n] = base + n*p.v.NStride
	}
	return dst
}

func (p perActivation) GroupOf(pos int) int {
	return pos % (p.v.C * p.v.H * p.v.W)
}

// spatial groups the N*H*W elements sharing one channel. Members are
// visited row by row, column by column, then across the batch.
type spatial struct {
	v tensor.View
}

func (spatial) Mode() Mode { return Spatial }

func (s spatial) Groups() int { return s.v.C }

func (s spatial) Size() int { return s.v.N * s.v.H * s.v.W }

func (s spatial) Offsets(c int, dst []int) []int {
	dst = dst[:s.Size()]
	i := 0
	for h := range s.v.H {
		for w := range s.v.W {
			base := s.v.Offset(0, c, h, w)
			for n := range s.v.N {
				dst[i] = base + n*s.v.NStride
				i++
			}
		}
	}
	return dst
}

func (s spatial) GroupOf(pos int) int {
	return (pos / (s.v.H * s.v.W)) % s.v.C
}
