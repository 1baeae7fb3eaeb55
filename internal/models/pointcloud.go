package models

import (
	"fmt"
	"math"
	"time"
)

// Standard per-shot field names of an airborne laser scanner point cloud
const (
	FieldTimestamp   = "timestamp"
	FieldLongitude   = "longitude"
	FieldLatitude    = "latitude"
	FieldElevation   = "elevation"
	FieldAmplitude   = "amplitude"
	FieldReflectance = "reflectance"
)

// PointCloud holds line-scanned laser altimetry samples.
//
// Every field is a row-major array of NLines x NShots values, one row per scan
// line. Missing values are NaN.
type PointCloud struct {
	// NLines is the number of scan lines
	NLines int

	// NShots is the number of shots per scan line
	NShots int

	// SegmentStart and SegmentEnd bound the acquisition time of the samples
	SegmentStart time.Time
	SegmentEnd   time.Time

	// DeviceName identifies the scanner that recorded the data
	DeviceName string

	fields map[string][]float64
	order  []string

	// gridVariables lists the fields that are rasterized. When empty every
	// field except longitude and latitude is gridded.
	gridVariables []string
}

// NewPointCloud creates an empty point cloud with the given sample shape
func NewPointCloud(nLines, nShots int) *PointCloud {
	return &PointCloud{
		NLines: nLines,
		NShots: nShots,
		fields: make(map[string][]float64),
	}
}

// Len returns the number of samples of each field
func (pc *PointCloud) Len() int {
	return pc.NLines * pc.NShots
}

// Set stores a field. The data must match the point cloud shape.
func (pc *PointCloud) Set(name string, data []float64) error {
	if len(data) != pc.Len() {
		return fmt.Errorf("field %s has %d samples, expected %d (%d lines x %d shots)",
			name, len(data), pc.Len(), pc.NLines, pc.NShots)
	}
	if _, ok := pc.fields[name]; !ok {
		pc.order = append(pc.order, name)
	}
	pc.fields[name] = data
	return nil
}

// Get returns a field by name. The returned slice is shared with the point
// cloud so filters can modify it in place.
func (pc *PointCloud) Get(name string) ([]float64, bool) {
	data, ok := pc.fields[name]
	return data, ok
}

// MustGet returns a field and panics if it does not exist
func (pc *PointCloud) MustGet(name string) []float64 {
	data, ok := pc.fields[name]
	if !ok {
		panic(fmt.Sprintf("point cloud has no field %q", name))
	}
	return data
}

// FieldNames returns the names of all fields in insertion order
func (pc *PointCloud) FieldNames() []string {
	names := make([]string, len(pc.order))
	copy(names, pc.order)
	return names
}

// SetGridVariables declares which fields are rasterized
func (pc *PointCloud) SetGridVariables(names ...string) error {
	for _, name := range names {
		if _, ok := pc.fields[name]; !ok {
			return fmt.Errorf("grid variable %s is not a field of the point cloud", name)
		}
	}
	pc.gridVariables = append([]string(nil), names...)
	return nil
}

// GridVariableNames returns the fields that are rasterized
func (pc *PointCloud) GridVariableNames() []string {
	if len(pc.gridVariables) > 0 {
		return append([]string(nil), pc.gridVariables...)
	}
	names := make([]string, 0, len(pc.order))
	for _, name := range pc.order {
		if name == FieldLongitude || name == FieldLatitude {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Line returns the samples of one scan line of a field
func (pc *PointCloud) Line(name string, line int) []float64 {
	data := pc.MustGet(name)
	return data[line*pc.NShots : (line+1)*pc.NShots]
}

// Index converts a (line, shot) position into the flat sample index
func (pc *PointCloud) Index(line, shot int) int {
	return line*pc.NShots + shot
}

// NumFinite returns the number of samples with finite longitude and latitude
func (pc *PointCloud) NumFinite() int {
	lon, okLon := pc.fields[FieldLongitude]
	lat, okLat := pc.fields[FieldLatitude]
	if !okLon || !okLat {
		return 0
	}
	n := 0
	for i := range lon {
		if !math.IsNaN(lon[i]) && !math.IsNaN(lat[i]) {
			n++
		}
	}
	return n
}

// RefTime is the center of the segment time coverage
func (pc *PointCloud) RefTime() time.Time {
	return pc.SegmentStart.Add(pc.SegmentEnd.Sub(pc.SegmentStart) / 2)
}

// TimeBounds returns the segment time coverage
func (pc *PointCloud) TimeBounds() (time.Time, time.Time) {
	return pc.SegmentStart, pc.SegmentEnd
}
