package projection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"alsdem/internal/nanstat"
)

// Alignment records the rotation that turns the mean flight direction of a
// swath onto the positive x-axis
type Alignment struct {
	// CenterX and CenterY are the rotation center in projection coordinates
	CenterX float64
	CenterY float64

	// Angle is the counter-clockwise rotation in radians
	Angle float64
}

// Heading returns the mean flight heading of a swath in projection
// coordinates, in radians clockwise from the positive y-axis.
//
// For every shot column the direction from the first to the last scan line is
// computed; columns with a missing end point are ignored. The result is NaN
// when no column yields a direction, e.g. for single-line input.
func Heading(x, y []float64, nLines, nShots int) float64 {
	if nLines < 2 || nShots < 1 || len(x) < nLines*nShots || len(y) < nLines*nShots {
		return math.NaN()
	}
	last := (nLines - 1) * nShots
	angles := make([]float64, nShots)
	for shot := 0; shot < nShots; shot++ {
		x0, y0 := x[shot], y[shot]
		x1, y1 := x[last+shot], y[last+shot]
		dx, dy := x1-x0, y1-y0
		if math.IsNaN(dx) || math.IsNaN(dy) || (dx == 0 && dy == 0) {
			angles[shot] = math.NaN()
			continue
		}
		angles[shot] = math.Atan2(dy, dx)
	}
	return 0.5*math.Pi - nanstat.Mean(angles)
}

// AlignHeading rotates x and y in place about their median position so that
// the mean heading points along the positive x-axis. It returns nil and
// leaves the coordinates untouched when the heading is undefined.
func AlignHeading(x, y []float64, nLines, nShots int) *Alignment {
	angle := Heading(x, y, nLines, nShots) - 0.5*math.Pi
	if math.IsNaN(angle) {
		return nil
	}
	a := &Alignment{
		CenterX: nanstat.Median(x),
		CenterY: nanstat.Median(y),
		Angle:   angle,
	}
	a.Apply(x, y)
	return a
}

// Apply rotates planar positions in place from the projection frame into the
// aligned frame
func (a *Alignment) Apply(x, y []float64) {
	rotate(x, y, a.CenterX, a.CenterY, a.Angle)
}

// Revert rotates aligned positions in place back into the projection frame
func (a *Alignment) Revert(x, y []float64) {
	rotate(x, y, a.CenterX, a.CenterY, -a.Angle)
}

func rotate(x, y []float64, cx, cy, angle float64) {
	n := len(x)
	if n == 0 {
		return
	}
	sin, cos := math.Sincos(angle)
	rot := mat.NewDense(2, 2, []float64{
		cos, -sin,
		sin, cos,
	})

	points := mat.NewDense(2, n, nil)
	for i := 0; i < n; i++ {
		points.Set(0, i, x[i]-cx)
		points.Set(1, i, y[i]-cy)
	}

	var rotated mat.Dense
	rotated.Mul(rot, points)

	for i := 0; i < n; i++ {
		x[i] = rotated.At(0, i) + cx
		y[i] = rotated.At(1, i) + cy
	}
}
