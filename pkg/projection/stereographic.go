// Package projection maps geodetic coordinates of laser altimetry samples onto
// a local planar frame and back.
//
// The planar frame is an ellipsoidal (WGS84) stereographic projection, either
// tangent at the median position of the data (auto mode) or given as a fixed
// proj4 definition. Polar aspects (lat_0 = +/-90) use lat_ts as the latitude of
// true scale; oblique and equatorial aspects are scaled by k_0.
package projection

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WGS84 ellipsoid
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
)

const (
	eps10     = 1e-10
	inverseIt = 8
	halfPi    = math.Pi / 2
	deg2rad   = math.Pi / 180
	rad2deg   = 180 / math.Pi
)

type aspect int

const (
	aspectOblique aspect = iota
	aspectNorthPole
	aspectSouthPole
)

// Projection converts between geodetic degrees and planar meters
type Projection interface {
	Forward(lon, lat float64) (x, y float64)
	Inverse(x, y float64) (lon, lat float64)
	Proj4() string
}

// Stereographic is an ellipsoidal stereographic projection on WGS84
type Stereographic struct {
	// Lat0 and Lon0 are the projection origin in degrees
	Lat0 float64
	Lon0 float64

	// LatTs is the latitude of true scale for polar aspects in degrees
	LatTs float64

	// X0 and Y0 are the false easting and northing in meters
	X0 float64
	Y0 float64

	// K0 is the scale factor at the origin
	K0 float64

	a, e  float64
	mode  aspect
	akm1  float64
	sinX1 float64
	cosX1 float64
	lam0  float64
}

// NewStereographic returns the projection tangent at (lon0, lat0) with the
// latitude of true scale equal to lat0
func NewStereographic(lon0, lat0 float64) *Stereographic {
	s, _ := newStereographic(lat0, lat0, lon0, 0, 0, 1)
	return s
}

func newStereographic(lat0, latTs, lon0, x0, y0, k0 float64) (*Stereographic, error) {
	if math.IsNaN(lat0) || math.IsNaN(lon0) || math.IsNaN(latTs) {
		return nil, fmt.Errorf("projection origin must be finite: lat_0=%v lon_0=%v lat_ts=%v", lat0, lon0, latTs)
	}
	if math.Abs(lat0) > 90 || math.Abs(latTs) > 90 {
		return nil, fmt.Errorf("latitude out of range: lat_0=%v lat_ts=%v", lat0, latTs)
	}
	if k0 <= 0 {
		return nil, fmt.Errorf("scale factor must be positive, got %v", k0)
	}

	s := &Stereographic{
		Lat0:  lat0,
		Lon0:  lon0,
		LatTs: latTs,
		X0:    x0,
		Y0:    y0,
		K0:    k0,
		a:     wgs84A,
		e:     math.Sqrt(wgs84F * (2 - wgs84F)),
		lam0:  lon0 * deg2rad,
	}

	phi0 := lat0 * deg2rad
	e := s.e
	switch {
	case math.Abs(math.Abs(phi0)-halfPi) < eps10:
		if phi0 < 0 {
			s.mode = aspectSouthPole
		} else {
			s.mode = aspectNorthPole
		}
		phits := math.Abs(latTs * deg2rad)
		if math.Abs(phits-halfPi) < eps10 {
			s.akm1 = 2 * k0 / math.Sqrt(math.Pow(1+e, 1+e)*math.Pow(1-e, 1-e))
		} else {
			t := math.Sin(phits)
			s.akm1 = math.Cos(phits) / tsfn(phits, t, e)
			t *= e
			s.akm1 /= math.Sqrt(1 - t*t)
		}
	default:
		// equatorial is the oblique case with phi0 = 0
		s.mode = aspectOblique
		t := math.Sin(phi0)
		x := 2*math.Atan(ssfn(phi0, t, e)) - halfPi
		t *= e
		s.akm1 = 2 * k0 * math.Cos(phi0) / math.Sqrt(1-t*t)
		s.sinX1 = math.Sin(x)
		s.cosX1 = math.Cos(x)
	}
	return s, nil
}

func ssfn(phi, sinphi, e float64) float64 {
	sinphi *= e
	return math.Tan(0.5*(halfPi+phi)) * math.Pow((1-sinphi)/(1+sinphi), 0.5*e)
}

func tsfn(phi, sinphi, e float64) float64 {
	sinphi *= e
	return math.Tan(0.5*(halfPi-phi)) / math.Pow((1-sinphi)/(1+sinphi), 0.5*e)
}

// adjlon wraps a longitude difference into [-pi, pi]
func adjlon(lam float64) float64 {
	if math.Abs(lam) <= math.Pi {
		return lam
	}
	lam = math.Mod(lam+math.Pi, 2*math.Pi)
	if lam < 0 {
		lam += 2 * math.Pi
	}
	return lam - math.Pi
}

// Forward projects a geodetic position in degrees to planar meters.
// NaN input yields NaN output.
func (s *Stereographic) Forward(lon, lat float64) (float64, float64) {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return math.NaN(), math.NaN()
	}
	phi := lat * deg2rad
	lam := adjlon(lon*deg2rad - s.lam0)

	sinlam, coslam := math.Sincos(lam)
	sinphi := math.Sin(phi)
	e := s.e

	var x, y float64
	switch s.mode {
	case aspectOblique:
		bigX := 2*math.Atan(ssfn(phi, sinphi, e)) - halfPi
		sinX, cosX := math.Sincos(bigX)
		denom := s.cosX1 * (1 + s.sinX1*sinX + s.cosX1*cosX*coslam)
		if denom == 0 {
			return math.NaN(), math.NaN()
		}
		a := s.akm1 / denom
		y = a * (s.cosX1*sinX - s.sinX1*cosX*coslam)
		x = a * cosX
	case aspectSouthPole, aspectNorthPole:
		if s.mode == aspectSouthPole {
			phi = -phi
			coslam = -coslam
			sinphi = -sinphi
		}
		if math.Abs(phi-halfPi) < 1e-15 {
			x = 0
		} else {
			x = s.akm1 * tsfn(phi, sinphi, e)
		}
		y = -x * coslam
	}
	x *= sinlam

	return x*s.a + s.X0, y*s.a + s.Y0
}

// Inverse maps planar meters back to a geodetic position in degrees.
// NaN input, or a position where the iteration does not converge, yields NaN.
func (s *Stereographic) Inverse(x, y float64) (float64, float64) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN(), math.NaN()
	}
	x = (x - s.X0) / s.a
	y = (y - s.Y0) / s.a

	rho := math.Hypot(x, y)
	var tp, phiL, halfe, hp float64

	switch s.mode {
	case aspectOblique:
		tp = 2 * math.Atan2(rho*s.cosX1, s.akm1)
		sinphi, cosphi := math.Sincos(tp)
		if rho == 0 {
			phiL = math.Asin(cosphi * s.sinX1)
		} else {
			phiL = math.Asin(cosphi*s.sinX1 + (y * sinphi * s.cosX1 / rho))
		}
		tp = math.Tan(0.5 * (halfPi + phiL))
		x *= sinphi
		y = rho*s.cosX1*cosphi - y*s.sinX1*sinphi
		hp = halfPi
		halfe = 0.5 * s.e
	case aspectNorthPole, aspectSouthPole:
		if s.mode == aspectNorthPole {
			y = -y
		}
		tp = -rho / s.akm1
		phiL = halfPi - 2*math.Atan(tp)
		hp = -halfPi
		halfe = -0.5 * s.e
	}

	for i := 0; i < inverseIt; i++ {
		sinphi := s.e * math.Sin(phiL)
		phi := 2*math.Atan(tp*math.Pow((1+sinphi)/(1-sinphi), halfe)) - hp
		if math.Abs(phiL-phi) < eps10 {
			if s.mode == aspectSouthPole {
				phi = -phi
			}
			lam := 0.0
			if x != 0 || y != 0 {
				lam = math.Atan2(x, y)
			}
			return adjlon(lam+s.lam0) * rad2deg, phi * rad2deg
		}
		phiL = phi
	}
	return math.NaN(), math.NaN()
}

// Proj4 returns the proj4 definition of the projection
func (s *Stereographic) Proj4() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return fmt.Sprintf("+proj=stere +lat_0=%s +lat_ts=%s +lon_0=%s +x_0=%s +y_0=%s +k=%s +ellps=WGS84 +units=m +no_defs",
		f(s.Lat0), f(s.LatTs), f(s.Lon0), f(s.X0), f(s.Y0), f(s.K0))
}

// String implements fmt.Stringer
func (s *Stereographic) String() string {
	return s.Proj4()
}

// ParseProj4 builds a stereographic projection from a proj4 definition such as
// "+proj=stere +lat_0=90 +lat_ts=70 +lon_0=-45 +ellps=WGS84".
// Only the stere family on WGS84 in meters is supported.
func ParseProj4(def string) (*Stereographic, error) {
	var proj string
	var lon0, x0, y0 float64
	lat0, latTs, k0 := math.NaN(), math.NaN(), 1.0

	for _, token := range strings.Fields(def) {
		token = strings.TrimPrefix(token, "+")
		key, value, _ := strings.Cut(token, "=")

		parse := func() (float64, error) {
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid value for %s in proj4 definition: %q", key, value)
			}
			return v, nil
		}

		var err error
		switch key {
		case "proj":
			proj = value
		case "lat_0":
			lat0, err = parse()
		case "lat_ts":
			latTs, err = parse()
		case "lon_0":
			lon0, err = parse()
		case "x_0":
			x0, err = parse()
		case "y_0":
			y0, err = parse()
		case "k", "k_0":
			k0, err = parse()
		case "ellps", "datum":
			if value != "WGS84" {
				err = fmt.Errorf("unsupported %s %q, only WGS84 is supported", key, value)
			}
		case "units":
			if value != "m" {
				err = fmt.Errorf("unsupported units %q, only m is supported", value)
			}
		case "no_defs", "type":
		default:
			err = fmt.Errorf("unsupported proj4 parameter %q", key)
		}
		if err != nil {
			return nil, err
		}
	}

	if proj != "stere" {
		return nil, fmt.Errorf("unsupported projection %q, only stere is supported", proj)
	}
	if math.IsNaN(lat0) {
		return nil, fmt.Errorf("proj4 definition is missing lat_0: %q", def)
	}
	if math.IsNaN(latTs) {
		latTs = 90
		if lat0 < 0 {
			latTs = -90
		}
	}
	return newStereographic(lat0, latTs, lon0, x0, y0, k0)
}
