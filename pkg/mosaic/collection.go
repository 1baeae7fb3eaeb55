package mosaic

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"alsdem/pkg/logging"
	"alsdem/pkg/tile"
)

var (
	// ErrReferenceCoverage is returned when the reference does not cover the
	// reference time of every tile
	ErrReferenceCoverage = errors.New("reference does not cover all tile times")

	// ErrNoReference is returned when a reference is required but none is set
	ErrNoReference = errors.New("no drift correction reference")

	// ErrNoTiles is returned when a merged grid is requested without tiles
	ErrNoTiles = errors.New("no tiles to merge")
)

// Reference is a time dependent geodetic position, e.g. the track of a ship
// moored to the ice floe
type Reference interface {
	TimeBounds() (time.Time, time.Time)
	Position(t time.Time) (lon, lat float64)
}

// Collection holds the tiles of one mosaic
type Collection struct {
	// Resolution of the merged grid. Zero uses the resolution of the first tile.
	Resolution float64

	tiles     []*tile.Tile
	ignore    map[int]bool
	reference Reference
}

// NewCollection creates a collection from tiles in merge order
func NewCollection(res float64, tiles ...*tile.Tile) *Collection {
	return &Collection{
		Resolution: res,
		tiles:      tiles,
		ignore:     make(map[int]bool),
	}
}

// LoadCollection reads tile files in the given order
func LoadCollection(res float64, paths []string) (*Collection, error) {
	log := logging.With("mosaic")
	c := NewCollection(res)
	for _, path := range paths {
		t, err := tile.Read(path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("tile", t.Filename()).Msg("read")
		c.Add(t)
	}
	return c, nil
}

// Add appends a tile
func (c *Collection) Add(t *tile.Tile) {
	c.tiles = append(c.tiles, t)
}

// Len returns the number of tiles including ignored ones
func (c *Collection) Len() int { return len(c.tiles) }

// Tiles returns all tiles in merge order
func (c *Collection) Tiles() []*tile.Tile { return c.tiles }

// Ignore excludes the tile at index i from merging. The tile stays in the
// collection.
func (c *Collection) Ignore(i int) error {
	if i < 0 || i >= len(c.tiles) {
		return fmt.Errorf("tile index %d out of range [0, %d)", i, len(c.tiles))
	}
	c.ignore[i] = true
	return nil
}

// IgnoreList returns the indices of excluded tiles in ascending order
func (c *Collection) IgnoreList() []int {
	list := make([]int, 0, len(c.ignore))
	for i := range c.ignore {
		list = append(list, i)
	}
	sort.Ints(list)
	return list
}

// IncludedTiles returns the tiles that take part in merging
func (c *Collection) IncludedTiles() []*tile.Tile {
	var out []*tile.Tile
	for i, t := range c.tiles {
		if !c.ignore[i] {
			out = append(out, t)
		}
	}
	return out
}

// Times returns the reference time of every tile
func (c *Collection) Times() []time.Time {
	times := make([]time.Time, len(c.tiles))
	for i, t := range c.tiles {
		times[i] = t.RefTime
	}
	return times
}

// TimeBounds returns the earliest and latest tile reference time
func (c *Collection) TimeBounds() (time.Time, time.Time) {
	var start, end time.Time
	for i, t := range c.tiles {
		if i == 0 || t.RefTime.Before(start) {
			start = t.RefTime
		}
		if i == 0 || t.RefTime.After(end) {
			end = t.RefTime
		}
	}
	return start, end
}

// Proj4 returns the projection of the first tile, which all tiles share
func (c *Collection) Proj4() string {
	if len(c.tiles) == 0 {
		return ""
	}
	return c.tiles[0].Proj4
}

// Bound returns the union of the node extents of the included tiles,
// including their offsets
func (c *Collection) Bound() (orb.Bound, error) {
	included := c.IncludedTiles()
	if len(included) == 0 {
		return orb.Bound{}, ErrNoTiles
	}
	b := included[0].Bound()
	for _, t := range included[1:] {
		b = b.Union(t.Bound())
	}
	return b, nil
}

// Reference returns the drift correction reference or nil
func (c *Collection) Reference() Reference { return c.reference }

// AddDriftCorrectionReference assigns every tile the planar offset that moves
// it into the ice frame of the first tile. The displacement of the reference
// between the first tile time and the tile time is projected with the
// projection of the first tile and applied negated.
//
// The reference must cover the reference times of all tiles, otherwise no
// offset is assigned.
func (c *Collection) AddDriftCorrectionReference(ref Reference) error {
	log := logging.With("mosaic")
	if len(c.tiles) == 0 {
		return ErrNoTiles
	}

	refStart, refEnd := ref.TimeBounds()
	tileStart, tileEnd := c.TimeBounds()
	if tileStart.Before(refStart) || tileEnd.After(refEnd) {
		return fmt.Errorf("%w: tiles [%s, %s], reference [%s, %s]", ErrReferenceCoverage,
			tileStart.Format(time.RFC3339), tileEnd.Format(time.RFC3339),
			refStart.Format(time.RFC3339), refEnd.Format(time.RFC3339))
	}
	for _, t := range c.tiles {
		if t.HasOffset() {
			return fmt.Errorf("%w: %s", tile.ErrOffsetAlreadySet, t.Filename())
		}
	}
	log.Info().Time("start", tileStart).Time("end", tileEnd).Msg("reference covers all tiles")

	p, err := c.tiles[0].Projection()
	if err != nil {
		return fmt.Errorf("error creating projection of first tile: %w", err)
	}

	refX := make([]float64, len(c.tiles))
	refY := make([]float64, len(c.tiles))
	for i, t := range c.tiles {
		lon, lat := ref.Position(t.RefTime)
		refX[i], refY[i] = p.Forward(lon, lat)
	}

	c.reference = ref
	t0 := c.tiles[0].RefTime
	for i, t := range c.tiles {
		dx := math.Trunc(refX[i] - refX[0])
		dy := math.Trunc(refY[i] - refY[0])
		if err := t.SetOffset(-dx, -dy); err != nil {
			return err
		}
		log.Debug().
			Str("tile", t.Filename()).
			Float64("time_offset_secs", t.RefTime.Sub(t0).Seconds()).
			Float64("dx", dx).
			Float64("dy", dy).
			Msg("drift displacement")
	}
	return nil
}

// SetMaximumDist2Ref excludes all tiles whose mean position is further than
// maxDist meters from the reference position at the tile time
func (c *Collection) SetMaximumDist2Ref(maxDist float64) error {
	log := logging.With("mosaic")
	if c.reference == nil {
		return ErrNoReference
	}

	for i, t := range c.tiles {
		lon, lat := c.reference.Position(t.RefTime)
		dist := geo.Distance(t.GeoCenter(), orb.Point{lon, lat})
		log.Debug().Int("tile", i+1).Float64("dist_m", dist).Msg("distance to reference")
		if dist > maxDist || math.IsNaN(dist) {
			c.ignore[i] = true
		}
	}
	log.Info().
		Float64("max_dist_m", maxDist).
		Int("ignored", len(c.ignore)).
		Int("tiles", len(c.tiles)).
		Msg("distance filter")
	return nil
}

// MergedGrid builds the merged grid over the included tiles.
//
// The merged nodes are spaced with round((max-min)/res) samples per axis while
// tile nodes run from min to max inclusive, so the last node row and column
// of the tiles at the upper bounds fall outside the merged grid and are
// dropped. AddGrid reports dropped cells with a warning.
func (c *Collection) MergedGrid() (*Merged, error) {
	log := logging.With("mosaic")

	b, err := c.Bound()
	if err != nil {
		return nil, err
	}
	res := c.Resolution
	if res <= 0 {
		res = c.tiles[0].Resolution
	}

	m := NewMerged(b.Min[0], b.Max[0], b.Min[1], b.Max[1], res, c.Proj4())
	log.Info().Int("nx", m.NX()).Int("ny", m.NY()).Float64("resolution", res).Msg("merge grids")
	for i, t := range c.tiles {
		if c.ignore[i] {
			continue
		}
		m.AddGrid(t)
		log.Info().Msgf("... %d / %d done [ref_time: %s]", i+1, len(c.tiles), t.RefTime.Format(time.RFC3339))
	}
	return m, nil
}
