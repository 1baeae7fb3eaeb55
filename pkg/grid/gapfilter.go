package grid

import (
	"errors"
	"fmt"
)

// Gap filter algorithm names
const (
	GapFilterNone    = "none"
	GapFilterMaximum = "maximum_filter"
)

// ErrUnknownGapFilter is returned for an unsupported gap filter algorithm
var ErrUnknownGapFilter = errors.New("unknown gap filter algorithm")

// GapFilterSettings configures the gap filling of the data mask
type GapFilterSettings struct {
	// Algorithm is GapFilterMaximum or GapFilterNone
	Algorithm string

	// Size is the filter window width in cells
	Size int

	// Mode is the boundary mode: nearest, reflect, mirror, wrap or constant
	Mode string
}

// DefaultGapFilter returns a 3x3 maximum filter with nearest boundary handling
func DefaultGapFilter() GapFilterSettings {
	return GapFilterSettings{Algorithm: GapFilterMaximum, Size: 3, Mode: "nearest"}
}

// Validate checks the algorithm name and filter parameters
func (s GapFilterSettings) Validate() error {
	switch s.Algorithm {
	case GapFilterNone:
		return nil
	case GapFilterMaximum:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGapFilter, s.Algorithm)
	}
	if s.Size < 1 {
		return fmt.Errorf("gap filter size must be at least 1, got %d", s.Size)
	}
	if _, err := boundaryFunc(s.Mode); err != nil {
		return err
	}
	return nil
}

// FillGaps returns the gap filled no-data mask. The valid cells (the inverse
// of mask) are dilated with a maximum filter, so isolated no-data cells
// surrounded by data become valid while the exterior stays masked.
func FillGaps(mask []bool, nx, ny int, s GapFilterSettings) ([]bool, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(mask) != nx*ny {
		return nil, fmt.Errorf("mask has %d cells, expected %d x %d", len(mask), ny, nx)
	}
	if s.Algorithm == GapFilterNone {
		return append([]bool(nil), mask...), nil
	}

	valid := make([]bool, len(mask))
	for k, m := range mask {
		valid[k] = !m
	}
	dilated, err := MaximumFilter(valid, nx, ny, s.Size, s.Mode)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(mask))
	for k, v := range dilated {
		out[k] = !v
	}
	return out, nil
}

// MaximumFilter applies a size x size maximum filter to a row-major boolean
// array. The window of cell i spans i-size/2 to i-size/2+size-1 along each
// axis; positions outside the array are resolved by the boundary mode.
func MaximumFilter(in []bool, nx, ny, size int, mode string) ([]bool, error) {
	if len(in) != nx*ny {
		return nil, fmt.Errorf("array has %d cells, expected %d x %d", len(in), ny, nx)
	}
	if size < 1 {
		return nil, fmt.Errorf("filter size must be at least 1, got %d", size)
	}
	resolve, err := boundaryFunc(mode)
	if err != nil {
		return nil, err
	}

	lo := -(size / 2)
	hi := lo + size - 1

	// rows
	tmp := make([]bool, len(in))
	for j := 0; j < ny; j++ {
		row := in[j*nx : (j+1)*nx]
		for i := 0; i < nx; i++ {
			for o := lo; o <= hi; o++ {
				k, ok := resolve(i+o, nx)
				if ok && row[k] {
					tmp[j*nx+i] = true
					break
				}
			}
		}
	}

	// columns
	out := make([]bool, len(in))
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for o := lo; o <= hi; o++ {
				k, ok := resolve(j+o, ny)
				if ok && tmp[k*nx+i] {
					out[j*nx+i] = true
					break
				}
			}
		}
	}
	return out, nil
}

// boundaryMode maps an index outside [0, n) back into the array. ok is false
// when the position has the constant fill value.
type boundaryMode func(idx, n int) (k int, ok bool)

func boundaryFunc(mode string) (boundaryMode, error) {
	switch mode {
	case "nearest", "":
		return func(idx, n int) (int, bool) {
			if idx < 0 {
				return 0, true
			}
			if idx >= n {
				return n - 1, true
			}
			return idx, true
		}, nil
	case "reflect":
		// d c b a | a b c d | d c b a
		return func(idx, n int) (int, bool) {
			period := 2 * n
			idx %= period
			if idx < 0 {
				idx += period
			}
			if idx >= n {
				idx = period - idx - 1
			}
			return idx, true
		}, nil
	case "mirror":
		// d c b | a b c d | c b a
		return func(idx, n int) (int, bool) {
			if n == 1 {
				return 0, true
			}
			period := 2*n - 2
			idx %= period
			if idx < 0 {
				idx += period
			}
			if idx >= n {
				idx = period - idx
			}
			return idx, true
		}, nil
	case "wrap":
		return func(idx, n int) (int, bool) {
			idx %= n
			if idx < 0 {
				idx += n
			}
			return idx, true
		}, nil
	case "constant":
		return func(idx, n int) (int, bool) {
			return idx, idx >= 0 && idx < n
		}, nil
	default:
		return nil, fmt.Errorf("unsupported boundary mode %q", mode)
	}
}
