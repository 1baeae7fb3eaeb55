// Package grid turns projected point clouds into regular elevation grids.
//
// A DEM is created in two stages. Rasterize projects the samples, builds one
// triangulation and interpolates every grid variable onto a regular mesh; the
// result is masked where no sample falls into a cell (processing level l3c).
// FillGaps then dilates the valid region to close isolated empty cells inside
// the swath (processing level l4).
package grid

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"alsdem/internal/models"
	"alsdem/pkg/interpolation"
	"alsdem/pkg/logging"
	"alsdem/pkg/projection"
)

// Gridding algorithm names
const (
	// AlgorithmDelaunay triangulates once and reuses the weights for all variables
	AlgorithmDelaunay = "delaunay"

	// AlgorithmLinear runs an independent linear interpolation per variable
	AlgorithmLinear = "linear"
)

// ErrUnknownGridAlgorithm is returned for an unsupported gridding algorithm
var ErrUnknownGridAlgorithm = errors.New("unknown gridding algorithm")

// ProcessingLevel describes how far a DEM has been processed
type ProcessingLevel string

const (
	LevelL3C ProcessingLevel = "Level-3 Collated (l3c)"
	LevelL4  ProcessingLevel = "Level-4 (l4)"
)

// Short returns the file name compatible identifier of the level
func (l ProcessingLevel) Short() string {
	for _, id := range []string{"l3c", "l4"} {
		if strings.Contains(string(l), "("+id+")") {
			return id
		}
	}
	return ""
}

// Settings controls the generation of a DEM
type Settings struct {
	// Resolution of the grid in meters
	Resolution float64

	// PadRatio extends the grid beyond the data bounding box
	PadRatio float64

	// Projection is projection.Auto or a proj4 definition
	Projection string

	// Algorithm is AlgorithmDelaunay or AlgorithmLinear
	Algorithm string

	// AlignHeading rotates the samples onto the mean flight direction
	AlignHeading bool

	// GapFilter settings
	GapFilter GapFilterSettings
}

// DefaultSettings returns 1 m gridding with a 3x3 gap filter
func DefaultSettings() Settings {
	return Settings{
		Resolution: 1.0,
		PadRatio:   0.05,
		Projection: projection.Auto,
		Algorithm:  AlgorithmDelaunay,
		GapFilter:  DefaultGapFilter(),
	}
}

// Validate checks the settings before any gridding work is done
func (s Settings) Validate() error {
	switch s.Algorithm {
	case AlgorithmDelaunay, AlgorithmLinear:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGridAlgorithm, s.Algorithm)
	}
	if !(s.Resolution > 0) {
		return fmt.Errorf("resolution must be positive, got %v", s.Resolution)
	}
	if s.PadRatio < 0 {
		return fmt.Errorf("pad ratio must not be negative, got %v", s.PadRatio)
	}
	return s.GapFilter.Validate()
}

// DEM is a gridded point cloud segment
type DEM struct {
	Settings Settings
	Level    ProcessingLevel

	// Projection used for the sample and node coordinates
	Projection *projection.Stereographic

	// Alignment is the heading rotation applied before gridding, nil if none
	Alignment *projection.Alignment

	// X and Y are the projected sample positions
	X, Y []float64

	// Mesh holds the node coordinates
	Mesh *Mesh

	// Lon and Lat are the geodetic positions of the mesh nodes
	Lon, Lat []float64

	// Occupancy is the number of samples per grid cell
	Occupancy []int

	// SegmentStart and SegmentEnd bound the acquisition time
	SegmentStart time.Time
	SegmentEnd   time.Time

	// DeviceName of the scanner
	DeviceName string

	variables map[string][]float64
	order     []string
	mask      []bool
}

// Create grids a point cloud and applies the configured gap filter
func Create(pc *models.PointCloud, s Settings) (*DEM, error) {
	d, err := Rasterize(pc, s)
	if err != nil {
		return nil, err
	}
	if s.GapFilter.Algorithm != GapFilterNone {
		if err := d.FillGaps(s.GapFilter); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Rasterize projects the point cloud and interpolates every grid variable onto
// a regular mesh. The returned DEM is at processing level l3c.
func Rasterize(pc *models.PointCloud, s Settings) (*DEM, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	lon, ok := pc.Get(models.FieldLongitude)
	if !ok {
		return nil, fmt.Errorf("point cloud has no %s field", models.FieldLongitude)
	}
	lat, ok := pc.Get(models.FieldLatitude)
	if !ok {
		return nil, fmt.Errorf("point cloud has no %s field", models.FieldLatitude)
	}

	log := logging.With("grid")
	start := time.Now()

	d := &DEM{
		Settings:     s,
		Level:        LevelL3C,
		SegmentStart: pc.SegmentStart,
		SegmentEnd:   pc.SegmentEnd,
		DeviceName:   pc.DeviceName,
		variables:    make(map[string][]float64),
	}

	var err error
	d.X, d.Y, d.Projection, err = projection.ComputeProjection(lon, lat, s.Projection)
	if err != nil {
		return nil, fmt.Errorf("error projecting point cloud: %w", err)
	}
	log.Debug().Str("proj4", d.Projection.Proj4()).Msg("projection")

	if s.AlignHeading {
		d.Alignment = projection.AlignHeading(d.X, d.Y, pc.NLines, pc.NShots)
		if d.Alignment == nil {
			log.Warn().Msg("heading undefined, samples not aligned")
		} else {
			log.Debug().Float64("angle_deg", d.Alignment.Angle*180/math.Pi).Msg("aligned to heading")
		}
	}

	extent, err := DataExtent(d.X, d.Y, s.PadRatio)
	if err != nil {
		return nil, err
	}
	d.Mesh = NewMesh(extent, s.Resolution)
	qx, qy := d.Mesh.Nodes()

	// node positions in the projection frame for the inverse mapping
	px := append([]float64(nil), qx...)
	py := append([]float64(nil), qy...)
	if d.Alignment != nil {
		d.Alignment.Revert(px, py)
	}
	d.Lon, d.Lat = projection.InverseAll(d.Projection, px, py)

	if err := d.interpolate(pc, qx, qy); err != nil {
		return nil, err
	}

	d.Occupancy = Occupancy(d.X, d.Y, d.Mesh)
	d.mask = d.InputDataMask()

	log.Info().
		Int("nx", d.Mesh.NX()).
		Int("ny", d.Mesh.NY()).
		Int("n_samples", pc.NumFinite()).
		Dur("elapsed", time.Since(start)).
		Msg("rasterized segment")

	return d, nil
}

func (d *DEM) interpolate(pc *models.PointCloud, qx, qy []float64) error {
	log := logging.With("grid")
	names := pc.GridVariableNames()

	switch d.Settings.Algorithm {
	case AlgorithmDelaunay:
		tri, err := interpolation.Build(d.X, d.Y)
		if err != nil {
			return fmt.Errorf("error triangulating samples: %w", err)
		}
		weights := tri.Weights(qx, qy)
		log.Debug().
			Int("triangles", tri.NumTriangles()).
			Int("resolved", weights.Resolved()).
			Int("nodes", weights.Len()).
			Msg("interpolation weights")

		for _, name := range names {
			values, err := weights.Apply(pc.MustGet(name))
			if err != nil {
				return fmt.Errorf("error gridding %s: %w", name, err)
			}
			d.setVariable(name, values)
			log.Debug().Str("variable", name).Msg("grid variable")
		}
	case AlgorithmLinear:
		for _, name := range names {
			values, err := interpolation.GridData(d.X, d.Y, pc.MustGet(name), qx, qy)
			if err != nil {
				return fmt.Errorf("error gridding %s: %w", name, err)
			}
			d.setVariable(name, values)
			log.Debug().Str("variable", name).Msg("grid variable")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGridAlgorithm, d.Settings.Algorithm)
	}
	return nil
}

func (d *DEM) setVariable(name string, values []float64) {
	if _, ok := d.variables[name]; !ok {
		d.order = append(d.order, name)
	}
	d.variables[name] = values
}

// FillGaps replaces the no-data mask with its gap filled version and raises
// the processing level to l4. The "none" algorithm leaves the DEM unchanged.
func (d *DEM) FillGaps(s GapFilterSettings) error {
	if s.Algorithm == GapFilterNone {
		return s.Validate()
	}
	filled, err := FillGaps(d.InputDataMask(), d.Mesh.NX(), d.Mesh.NY(), s)
	if err != nil {
		return err
	}
	d.mask = filled
	d.Level = LevelL4
	return nil
}

// InputDataMask is true for cells without any sample
func (d *DEM) InputDataMask() []bool {
	mask := make([]bool, len(d.Occupancy))
	for k, n := range d.Occupancy {
		mask[k] = n == 0
	}
	return mask
}

// Mask returns the current no-data mask (true = no data)
func (d *DEM) Mask() []bool {
	return append([]bool(nil), d.mask...)
}

// VariableNames returns the gridded variables in gridding order
func (d *DEM) VariableNames() []string {
	return append([]string(nil), d.order...)
}

// Variable returns a gridded variable. With masked set, cells flagged in the
// no-data mask are NaN. The returned slice is a copy.
func (d *DEM) Variable(name string, masked bool) ([]float64, error) {
	values, ok := d.variables[name]
	if !ok {
		return nil, fmt.Errorf("variable does not exist: %s", name)
	}
	out := append([]float64(nil), values...)
	if masked {
		for k, m := range d.mask {
			if m {
				out[k] = math.NaN()
			}
		}
	}
	return out, nil
}

// Resolution returns the grid resolution in meters
func (d *DEM) Resolution() float64 {
	return d.Settings.Resolution
}

// RefTime is the center of the segment time coverage
func (d *DEM) RefTime() time.Time {
	return d.SegmentStart.Add(d.SegmentEnd.Sub(d.SegmentStart) / 2)
}

const fnTimeLayout = "20060102T150405"

// FnProcLevel is the processing level for file names ("l3c" or "l4")
func (d *DEM) FnProcLevel() string {
	return d.Level.Short()
}

// FnRes is the resolution for file names, e.g. "0p50m"
func (d *DEM) FnRes() string {
	return strings.ReplaceAll(fmt.Sprintf("%.2fm", d.Resolution()), ".", "p")
}

// FnTCS is the time coverage start for file names
func (d *DEM) FnTCS() string {
	return d.SegmentStart.UTC().Format(fnTimeLayout)
}

// FnTCE is the time coverage end for file names
func (d *DEM) FnTCE() string {
	return d.SegmentEnd.UTC().Format(fnTimeLayout)
}

// Filename returns the product file name of the DEM for an extension such as ".nc"
func (d *DEM) Filename(prefix, ext string) string {
	parts := []string{prefix}
	if d.DeviceName != "" {
		parts = append(parts, strings.ToLower(d.DeviceName))
	}
	parts = append(parts, d.FnProcLevel(), d.FnRes(), d.FnTCS(), d.FnTCE())
	return strings.Join(parts, "-") + ext
}
