// Package mosaic merges DEM tiles into one larger grid.
//
// A Collection holds the tiles of a flight. It assigns per tile drift offsets
// from a reference trajectory, excludes tiles too far from the reference and
// builds a Merged grid. Tiles are written into the merged grid in order with
// their median elevation removed, later tiles overwrite earlier ones.
package mosaic

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"alsdem/pkg/logging"
	"alsdem/pkg/tile"
)

// Merged is a regular grid assembled from tiles. Arrays are row-major with
// len(YC) rows of len(XC) values, row 0 at YMin.
type Merged struct {
	XMin, XMax float64
	YMin, YMax float64
	Resolution float64
	Proj4      string

	XC []float64
	YC []float64

	Elevation []float64
	Lon       []float64
	Lat       []float64

	// NumTiles counts the tiles added so far
	NumTiles int
}

// NewMerged creates an empty merged grid covering the given bounds
func NewMerged(xmin, xmax, ymin, ymax, res float64, proj4 string) *Merged {
	m := &Merged{
		XMin:       xmin,
		XMax:       xmax,
		YMin:       ymin,
		YMax:       ymax,
		Resolution: res,
		Proj4:      proj4,
		XC:         linspace(xmin, xmax, res),
		YC:         linspace(ymin, ymax, res),
	}
	n := len(m.XC) * len(m.YC)
	m.Elevation = nanSlice(n)
	m.Lon = nanSlice(n)
	m.Lat = nanSlice(n)
	return m
}

// linspace spaces round((stop-start)/res) values evenly from start to stop
func linspace(start, stop, res float64) []float64 {
	n := int(math.Round((stop - start) / res))
	if n < 2 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, stop)
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// NX returns the number of columns
func (m *Merged) NX() int { return len(m.XC) }

// NY returns the number of rows
func (m *Merged) NY() int { return len(m.YC) }

// AddGrid writes the finite elevations of a tile into the merged grid with the
// tile median removed. Longitude and latitude are copied unchanged. Finite
// cells that fall outside the merged grid are dropped and their number is
// returned.
func (m *Merged) AddGrid(t *tile.Tile) int {
	log := logging.With("mosaic")

	xmin, _ := t.XCBounds()
	ymin, _ := t.YCBounds()
	xi0 := int(math.Round((xmin - m.XMin) / m.Resolution))
	yj0 := int(math.Round((ymin - m.YMin) / m.Resolution))
	bias := t.ElevationMedian()

	nx, ny := t.NX(), t.NY()
	written, clipped := 0, 0
	for j := 0; j < ny; j++ {
		mj := j + yj0
		for i := 0; i < nx; i++ {
			k := j*nx + i
			v := t.Elevation[k]
			if math.IsNaN(v) {
				continue
			}
			mi := i + xi0
			if mi < 0 || mi >= m.NX() || mj < 0 || mj >= m.NY() {
				clipped++
				continue
			}
			idx := mj*m.NX() + mi
			m.Elevation[idx] = v - bias
			m.Lon[idx] = t.Lon[k]
			m.Lat[idx] = t.Lat[k]
			written++
		}
	}
	m.NumTiles++

	log.Debug().
		Str("tile", t.Filename()).
		Int("xi_offset", xi0).
		Int("yj_offset", yj0).
		Float64("bias", bias).
		Int("cells", written).
		Msg("add grid")
	if clipped > 0 {
		log.Warn().
			Str("tile", t.Filename()).
			Int("clipped", clipped).
			Int("cells", written).
			Msg("tile cells outside merged grid dropped")
	}
	return clipped
}

// NumValid returns the number of cells with a finite elevation
func (m *Merged) NumValid() int {
	n := 0
	for _, v := range m.Elevation {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
