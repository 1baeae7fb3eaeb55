// Package filter provides point cloud filters that run before gridding.
//
// Filters modify a point cloud in place. They are selected by name in the
// configuration and applied in order by a Chain.
package filter

import (
	"errors"
	"fmt"
	"math"
	"time"

	"alsdem/internal/models"
	"alsdem/internal/nanstat"
	"alsdem/pkg/config"
	"alsdem/pkg/logging"
)

// Filter names used in the configuration
const (
	NameAtmosphericBackscatter = "atmospheric_backscatter"
)

// ErrUnknownFilter is returned for filter names without an implementation
var ErrUnknownFilter = errors.New("unknown point cloud filter")

// Filter modifies a point cloud in place
type Filter interface {
	Name() string
	Apply(pc *models.PointCloud) error
}

// Chain applies filters in order
type Chain []Filter

// Name returns the names of all filters in the chain
func (c Chain) Name() string {
	name := ""
	for i, f := range c {
		if i > 0 {
			name += ","
		}
		name += f.Name()
	}
	return name
}

// Apply runs every filter of the chain and stops at the first error
func (c Chain) Apply(pc *models.PointCloud) error {
	for _, f := range c {
		if err := f.Apply(pc); err != nil {
			return fmt.Errorf("filter %s: %w", f.Name(), err)
		}
	}
	return nil
}

// FromConfig builds the filter chain of the configuration
func FromConfig(cfgs []config.FilterConfig) (Chain, error) {
	chain := make(Chain, 0, len(cfgs))
	for _, cfg := range cfgs {
		switch cfg.Name {
		case NameAtmosphericBackscatter:
			chain = append(chain, NewAtmosphericBackscatter(cfg.Threshold))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, cfg.Name)
		}
	}
	return chain, nil
}

// AtmosphericBackscatter removes echoes from within the atmosphere. A shot is
// a spike if its elevation differs from both neighbours in the scan line by
// more than the threshold and it is a local extremum. Spike elevations are set
// to NaN.
type AtmosphericBackscatter struct {
	// Threshold in meters
	Threshold float64
}

// NewAtmosphericBackscatter creates the filter with a threshold in meters
func NewAtmosphericBackscatter(threshold float64) *AtmosphericBackscatter {
	return &AtmosphericBackscatter{Threshold: threshold}
}

func (f *AtmosphericBackscatter) Name() string { return NameAtmosphericBackscatter }

func (f *AtmosphericBackscatter) Apply(pc *models.PointCloud) error {
	if _, ok := pc.Get(models.FieldElevation); !ok {
		return fmt.Errorf("point cloud has no %s field", models.FieldElevation)
	}

	removed := 0
	filled := make([]float64, pc.NShots)
	for line := 0; line < pc.NLines; line++ {
		elev := pc.Line(models.FieldElevation, line)

		// spike detection needs a gap free line
		median := nanstat.Median(elev)
		for i, v := range elev {
			if math.IsNaN(v) {
				filled[i] = median
			} else {
				filled[i] = v
			}
		}
		for _, i := range spikes(filled, f.Threshold) {
			elev[i] = math.NaN()
			removed++
		}
	}

	logging.Debug().
		Str("filter", f.Name()).
		Float64("threshold_m", f.Threshold).
		Int("removed", removed).
		Msg("filter applied")
	return nil
}

// spikes returns the indices of points that change by more than threshold to
// both neighbours and are local extrema
func spikes(v []float64, threshold float64) []int {
	var out []int
	for i := 1; i < len(v)-1; i++ {
		right := v[i] - v[i-1]
		left := v[i+1] - v[i]
		if !(math.Abs(right) > threshold && math.Abs(left) > threshold) {
			continue
		}
		if (right > 0) != (left > 0) {
			out = append(out, i)
		}
	}
	return out
}

// IceCoordinateSystem moves geodetic positions into a frame that drifts with
// the ice. Implementations are backed by reference station data.
type IceCoordinateSystem interface {
	Correct(t []time.Time, lon, lat []float64) error
}

// IceDriftCorrection corrects the positions of all finite samples with an
// external ice coordinate system
type IceDriftCorrection struct {
	System IceCoordinateSystem
}

func (f *IceDriftCorrection) Name() string { return "ice_drift_correction" }

func (f *IceDriftCorrection) Apply(pc *models.PointCloud) error {
	if f.System == nil {
		return errors.New("no ice coordinate system")
	}
	ts, okT := pc.Get(models.FieldTimestamp)
	lon, okLon := pc.Get(models.FieldLongitude)
	lat, okLat := pc.Get(models.FieldLatitude)
	if !okT || !okLon || !okLat {
		return errors.New("point cloud needs timestamp, longitude and latitude")
	}

	// timestamps are seconds of the day of the segment start
	y, m, d := pc.SegmentStart.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var (
		idx    []int
		times  []time.Time
		subLon []float64
		subLat []float64
	)
	for i := range lon {
		if math.IsNaN(lon[i]) || math.IsNaN(lat[i]) || math.IsNaN(ts[i]) {
			continue
		}
		idx = append(idx, i)
		times = append(times, day.Add(time.Duration(ts[i]*float64(time.Second))))
		subLon = append(subLon, lon[i])
		subLat = append(subLat, lat[i])
	}
	if err := f.System.Correct(times, subLon, subLat); err != nil {
		return err
	}
	for k, i := range idx {
		lon[i], lat[i] = subLon[k], subLat[k]
	}
	return nil
}
