// Package tile holds persisted DEM tiles.
//
// A tile is the gridded result of one point cloud segment: node coordinate
// vectors, the masked elevation and its node longitudes/latitudes, a reference
// time and the proj4 definition of its projection. Tiles are stored as netCDF
// files and loaded again for mosaicking, where a planar drift offset may be
// assigned once.
package tile

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"

	"alsdem/internal/models"
	"alsdem/internal/nanstat"
	"alsdem/pkg/grid"
	"alsdem/pkg/projection"
)

// ErrOffsetAlreadySet is returned when a tile offset is assigned twice
var ErrOffsetAlreadySet = errors.New("tile offset already set")

// Tile is a persisted DEM. Data arrays are row-major with NY rows of NX values.
type Tile struct {
	// Path of the file the tile was read from or written to
	Path string

	// XC and YC are the node coordinates without offset
	XC []float64
	YC []float64

	Elevation []float64
	Lon       []float64
	Lat       []float64

	// NShots is the number of samples per cell
	NShots []float64

	// Extra holds further gridded variables by name
	Extra map[string][]float64

	RefTime           time.Time
	TimeCoverageStart time.Time
	TimeCoverageEnd   time.Time

	Resolution      float64
	Proj4           string
	ProcessingLevel string
	DeviceName      string

	offset    [2]float64
	offsetSet bool
}

// FromDEM converts a DEM into a tile. All variables are stored masked.
func FromDEM(d *grid.DEM) (*Tile, error) {
	t := &Tile{
		XC:                append([]float64(nil), d.Mesh.XC...),
		YC:                append([]float64(nil), d.Mesh.YC...),
		Lon:               append([]float64(nil), d.Lon...),
		Lat:               append([]float64(nil), d.Lat...),
		Extra:             make(map[string][]float64),
		RefTime:           d.RefTime(),
		TimeCoverageStart: d.SegmentStart,
		TimeCoverageEnd:   d.SegmentEnd,
		Resolution:        d.Resolution(),
		Proj4:             d.Projection.Proj4(),
		ProcessingLevel:   string(d.Level),
		DeviceName:        d.DeviceName,
	}

	for _, name := range d.VariableNames() {
		values, err := d.Variable(name, true)
		if err != nil {
			return nil, err
		}
		if name == models.FieldElevation {
			t.Elevation = values
			continue
		}
		t.Extra[name] = values
	}
	if t.Elevation == nil {
		return nil, fmt.Errorf("DEM has no %s variable", models.FieldElevation)
	}

	t.NShots = make([]float64, len(d.Occupancy))
	for k, n := range d.Occupancy {
		t.NShots[k] = float64(n)
	}
	return t, nil
}

// NX returns the number of columns
func (t *Tile) NX() int { return len(t.XC) }

// NY returns the number of rows
func (t *Tile) NY() int { return len(t.YC) }

// Filename returns the base name of the tile file
func (t *Tile) Filename() string {
	return filepath.Base(t.Path)
}

// SetOffset assigns the planar drift offset. It can be set only once.
func (t *Tile) SetOffset(dx, dy float64) error {
	if t.offsetSet {
		return fmt.Errorf("%w: %s", ErrOffsetAlreadySet, t.Filename())
	}
	t.offset = [2]float64{dx, dy}
	t.offsetSet = true
	return nil
}

// Offset returns the planar drift offset
func (t *Tile) Offset() (dx, dy float64) {
	return t.offset[0], t.offset[1]
}

// HasOffset reports whether an offset was assigned
func (t *Tile) HasOffset() bool {
	return t.offsetSet
}

// X returns the node x coordinates including the offset
func (t *Tile) X() []float64 {
	return shifted(t.XC, t.offset[0])
}

// Y returns the node y coordinates including the offset
func (t *Tile) Y() []float64 {
	return shifted(t.YC, t.offset[1])
}

func shifted(c []float64, d float64) []float64 {
	out := make([]float64, len(c))
	for i, v := range c {
		out[i] = v + d
	}
	return out
}

// XCBounds returns the smallest and largest node x including the offset
func (t *Tile) XCBounds() (float64, float64) {
	return nanstat.Min(t.XC) + t.offset[0], nanstat.Max(t.XC) + t.offset[0]
}

// YCBounds returns the smallest and largest node y including the offset
func (t *Tile) YCBounds() (float64, float64) {
	return nanstat.Min(t.YC) + t.offset[1], nanstat.Max(t.YC) + t.offset[1]
}

// Bound returns the planar node extent including the offset
func (t *Tile) Bound() orb.Bound {
	xmin, xmax := t.XCBounds()
	ymin, ymax := t.YCBounds()
	return orb.Bound{Min: orb.Point{xmin, ymin}, Max: orb.Point{xmax, ymax}}
}

// Width returns the x extent of the nodes
func (t *Tile) Width() float64 {
	return t.Bound().Right() - t.Bound().Left()
}

// Height returns the y extent of the nodes
func (t *Tile) Height() float64 {
	return t.Bound().Top() - t.Bound().Bottom()
}

// Center returns the planar center of the node extent
func (t *Tile) Center() orb.Point {
	return t.Bound().Center()
}

// GeoCenter returns the mean longitude and latitude of the tile nodes
func (t *Tile) GeoCenter() orb.Point {
	return orb.Point{nanstat.Mean(t.Lon), nanstat.Mean(t.Lat)}
}

// Projection rebuilds the projection from the stored proj4 definition
func (t *Tile) Projection() (*projection.Stereographic, error) {
	return projection.ParseProj4(t.Proj4)
}

// ElevationMedian returns the median of the finite elevations
func (t *Tile) ElevationMedian() float64 {
	return nanstat.Median(t.Elevation)
}

// NumValid returns the number of cells with a finite elevation
func (t *Tile) NumValid() int {
	return nanstat.Count(t.Elevation)
}

func (t *Tile) validate() error {
	n := t.NX() * t.NY()
	if n == 0 {
		return fmt.Errorf("tile has an empty grid (%d x %d)", t.NY(), t.NX())
	}
	check := func(name string, v []float64) error {
		if len(v) != n {
			return fmt.Errorf("variable %s has %d cells, expected %d x %d", name, len(v), t.NY(), t.NX())
		}
		return nil
	}
	if err := check("elevation", t.Elevation); err != nil {
		return err
	}
	if err := check("lon", t.Lon); err != nil {
		return err
	}
	if err := check("lat", t.Lat); err != nil {
		return err
	}
	if t.NShots != nil {
		if err := check("n_shots", t.NShots); err != nil {
			return err
		}
	}
	for name, v := range t.Extra {
		if err := check(name, v); err != nil {
			return err
		}
	}
	if math.IsNaN(t.Resolution) || t.Resolution <= 0 {
		return fmt.Errorf("invalid tile resolution %v", t.Resolution)
	}
	return nil
}
