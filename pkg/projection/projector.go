package projection

import (
	"fmt"
	"math"

	"alsdem/internal/nanstat"
)

// Auto selects a stereographic projection centered on the data
const Auto = "auto"

// SwathCenter estimates the projection center as the median of the finite
// longitudes and latitudes
func SwathCenter(lon, lat []float64) (lon0, lat0 float64) {
	return nanstat.Median(lon), nanstat.Median(lat)
}

// FromDefinition returns the projection for a definition string. "auto" (or an
// empty string) centers a stereographic projection on the swath; anything else
// is parsed as a proj4 definition.
func FromDefinition(definition string, lon, lat []float64) (*Stereographic, error) {
	if definition != "" && definition != Auto {
		return ParseProj4(definition)
	}
	lon0, lat0 := SwathCenter(lon, lat)
	if math.IsNaN(lon0) || math.IsNaN(lat0) {
		return nil, fmt.Errorf("cannot estimate projection center: no finite longitude/latitude")
	}
	return newStereographic(lat0, lat0, lon0, 0, 0, 1)
}

// ComputeProjection projects longitude/latitude samples to planar coordinates.
//
// Samples where longitude or latitude is NaN are projected at the projection
// center and then reset to NaN, so x and y carry exactly the NaN mask of the
// input.
func ComputeProjection(lon, lat []float64, definition string) (x, y []float64, p *Stereographic, err error) {
	if len(lon) != len(lat) {
		return nil, nil, nil, fmt.Errorf("longitude and latitude length mismatch: %d != %d", len(lon), len(lat))
	}
	p, err = FromDefinition(definition, lon, lat)
	if err != nil {
		return nil, nil, nil, err
	}
	x, y = Project(p, lon, lat)
	return x, y, p, nil
}

// Project applies the forward mapping of p to every sample
func Project(p Projection, lon, lat []float64) (x, y []float64) {
	x = make([]float64, len(lon))
	y = make([]float64, len(lon))

	var lonC, latC float64
	if s, ok := p.(*Stereographic); ok {
		lonC, latC = s.Lon0, s.Lat0
	}

	for i := range lon {
		missing := math.IsNaN(lon[i]) || math.IsNaN(lat[i])
		lo, la := lon[i], lat[i]
		if missing {
			lo, la = lonC, latC
		}
		x[i], y[i] = p.Forward(lo, la)
		if missing {
			x[i], y[i] = math.NaN(), math.NaN()
		}
	}
	return x, y
}

// InverseAll applies the inverse mapping of p to every planar position
func InverseAll(p Projection, x, y []float64) (lon, lat []float64) {
	lon = make([]float64, len(x))
	lat = make([]float64, len(x))
	for i := range x {
		lon[i], lat[i] = p.Inverse(x[i], y[i])
	}
	return lon, lat
}
