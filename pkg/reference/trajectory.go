// Package reference loads reference trajectories used for ice drift correction.
//
// A trajectory is a time series of geodetic positions, e.g. the track of a
// ship or a drifting buoy that moved with the ice. Positions between samples
// are linearly interpolated in time.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyTrajectory is returned for a trajectory without samples
var ErrEmptyTrajectory = errors.New("trajectory has no samples")

// Trajectory is a time ordered list of reference positions
type Trajectory struct {
	Name string

	// Time in seconds since the unix epoch
	Time []float64
	Lon  []float64
	Lat  []float64
}

// New creates a trajectory from parallel arrays. Samples are sorted by time.
func New(name string, t []time.Time, lon, lat []float64) (*Trajectory, error) {
	if len(t) != len(lon) || len(t) != len(lat) {
		return nil, fmt.Errorf("trajectory arrays differ in length: time=%d lon=%d lat=%d", len(t), len(lon), len(lat))
	}
	if len(t) == 0 {
		return nil, ErrEmptyTrajectory
	}
	tr := &Trajectory{
		Name: name,
		Time: make([]float64, len(t)),
		Lon:  append([]float64(nil), lon...),
		Lat:  append([]float64(nil), lat...),
	}
	for i, ti := range t {
		tr.Time[i] = unixSeconds(ti)
	}
	sort.Sort(byTime{tr})
	return tr, nil
}

// Load reads a trajectory from a CSV file with the columns time, lon, lat.
// Time is RFC 3339 or unix seconds. A header line is detected and skipped.
func Load(path string) (*Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening reference file: %w", err)
	}
	defer f.Close()

	tr, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("error reading reference file %s: %w", path, err)
	}
	tr.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return tr, nil
}

// Parse reads trajectory records from CSV
func Parse(r io.Reader) (*Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		times    []time.Time
		lon, lat []float64
		line     int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		t, err := parseTime(rec[0])
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		x, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid longitude: %w", line, err)
		}
		y, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid latitude: %w", line, err)
		}
		times = append(times, t)
		lon = append(lon, x)
		lat = append(lat, y)
	}
	return New("", times, lon, lat)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// Len returns the number of samples
func (tr *Trajectory) Len() int { return len(tr.Time) }

// TimeBounds returns the first and last sample time
func (tr *Trajectory) TimeBounds() (time.Time, time.Time) {
	return toTime(tr.Time[0]), toTime(tr.Time[len(tr.Time)-1])
}

// Covers reports whether t lies within the trajectory time span
func (tr *Trajectory) Covers(t time.Time) bool {
	v := unixSeconds(t)
	return v >= tr.Time[0] && v <= tr.Time[len(tr.Time)-1]
}

// Position returns the interpolated longitude and latitude at time t. Times
// outside the trajectory are clamped to the first or last sample.
func (tr *Trajectory) Position(t time.Time) (lon, lat float64) {
	v := unixSeconds(t)
	return interp(v, tr.Time, tr.Lon), interp(v, tr.Time, tr.Lat)
}

// interp is one-dimensional linear interpolation with constant extrapolation
func interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	i := sort.SearchFloat64s(xp, x)
	if xp[i] == x {
		return fp[i]
	}
	x0, x1 := xp[i-1], xp[i]
	w := (x - x0) / (x1 - x0)
	return fp[i-1] + w*(fp[i]-fp[i-1])
}

func toTime(v float64) time.Time {
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

type byTime struct{ *Trajectory }

func (b byTime) Len() int           { return len(b.Time) }
func (b byTime) Less(i, j int) bool { return b.Time[i] < b.Time[j] }
func (b byTime) Swap(i, j int) {
	b.Time[i], b.Time[j] = b.Time[j], b.Time[i]
	b.Lon[i], b.Lon[j] = b.Lon[j], b.Lon[i]
	b.Lat[i], b.Lat[j] = b.Lat[j], b.Lat[i]
}
