package tile

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ctessum/cdf"
)

// TimeUnits is the unit of the time coordinate of tile files
const TimeUnits = "seconds since 1970-01-01"

var gridDims = []string{"yc", "xc"}

var variableAttrs = map[string][2]string{
	"elevation": {"elevation above WGS84 ellipsoid", "m"},
	"lon":       {"longitude of grid cell center", "degrees_east"},
	"lat":       {"latitude of grid cell center", "degrees_north"},
	"n_shots":   {"number of laser shots per grid cell", "1"},
}

// Write stores the tile as a netCDF file and records the path in the tile
func (t *Tile) Write(path string) error {
	if err := t.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating tile directory: %w", err)
	}

	data := map[string][]float64{
		"elevation": t.Elevation,
		"lon":       t.Lon,
		"lat":       t.Lat,
	}
	if t.NShots != nil {
		data["n_shots"] = t.NShots
	}
	for name, v := range t.Extra {
		data[name] = v
	}
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	h := cdf.NewHeader([]string{"time", "yc", "xc"}, []int{1, t.NY(), t.NX()})
	h.AddAttribute("", "cdm_data_type", "grid")
	h.AddAttribute("", "processing_level", t.ProcessingLevel)
	h.AddAttribute("", "proj4_string", t.Proj4)
	h.AddAttribute("", "geospatial_lon_units", "m")
	h.AddAttribute("", "geospatial_lat_units", "m")
	h.AddAttribute("", "geospatial_lon_resolution", []float64{t.Resolution})
	h.AddAttribute("", "geospatial_lat_resolution", []float64{t.Resolution})
	h.AddAttribute("", "time_coverage_start", t.TimeCoverageStart.UTC().Format(time.RFC3339Nano))
	h.AddAttribute("", "time_coverage_end", t.TimeCoverageEnd.UTC().Format(time.RFC3339Nano))
	if t.DeviceName != "" {
		h.AddAttribute("", "device_name", t.DeviceName)
	}

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", TimeUnits)
	h.AddVariable("xc", []string{"xc"}, []float64{0})
	h.AddAttribute("xc", "units", "m")
	h.AddVariable("yc", []string{"yc"}, []float64{0})
	h.AddAttribute("yc", "units", "m")
	for _, name := range names {
		h.AddVariable(name, gridDims, []float64{0})
		if attrs, ok := variableAttrs[name]; ok {
			h.AddAttribute(name, "long_name", attrs[0])
			h.AddAttribute(name, "units", attrs[1])
		}
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating tile file: %w", err)
	}
	defer f.Close()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("error writing netCDF header: %w", err)
	}

	if err := writeVariable(nc, "time", []float64{timeToNum(t.RefTime)}); err != nil {
		return err
	}
	if err := writeVariable(nc, "xc", t.XC); err != nil {
		return err
	}
	if err := writeVariable(nc, "yc", t.YC); err != nil {
		return err
	}
	for _, name := range names {
		if err := writeVariable(nc, name, data[name]); err != nil {
			return err
		}
	}

	t.Path = path
	return f.Close()
}

func writeVariable(f *cdf.File, name string, data []float64) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("error writing variable %s: %w", name, err)
	}
	return nil
}

// Read loads a tile from a netCDF file
func Read(path string) (*Tile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening tile file: %w", err)
	}
	defer file.Close()

	f, err := cdf.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error reading netCDF header of %s: %w", path, err)
	}

	t := &Tile{
		Path:  path,
		Extra: make(map[string][]float64),
	}

	t.Proj4 = stringAttr(f, "proj4_string")
	t.ProcessingLevel = stringAttr(f, "processing_level")
	t.DeviceName = stringAttr(f, "device_name")
	t.Resolution = floatAttr(f, "geospatial_lat_resolution")
	t.TimeCoverageStart, _ = time.Parse(time.RFC3339Nano, stringAttr(f, "time_coverage_start"))
	t.TimeCoverageEnd, _ = time.Parse(time.RFC3339Nano, stringAttr(f, "time_coverage_end"))
	if t.Proj4 == "" {
		return nil, fmt.Errorf("tile %s has no proj4_string attribute", path)
	}

	times, err := readVariable(f, "time")
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("tile %s has no reference time", path)
	}
	t.RefTime = numToTime(times[0])

	if t.XC, err = readVariable(f, "xc"); err != nil {
		return nil, err
	}
	if t.YC, err = readVariable(f, "yc"); err != nil {
		return nil, err
	}

	for _, name := range f.Header.Variables() {
		switch name {
		case "time", "xc", "yc":
			continue
		}
		values, err := readVariable(f, name)
		if err != nil {
			return nil, err
		}
		switch name {
		case "elevation":
			t.Elevation = values
		case "lon":
			t.Lon = values
		case "lat":
			t.Lat = values
		case "n_shots":
			t.NShots = values
		default:
			t.Extra[name] = values
		}
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("invalid tile %s: %w", path, err)
	}
	return t, nil
}

func readVariable(f *cdf.File, name string) ([]float64, error) {
	n := 1
	for _, l := range f.Header.Lengths(name) {
		n *= l
	}
	buf := make([]float64, n)
	r := f.Reader(name, nil, nil)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("error reading variable %s: %w", name, err)
	}
	return buf, nil
}

func stringAttr(f *cdf.File, name string) string {
	v, _ := f.Header.GetAttribute("", name).(string)
	return v
}

func floatAttr(f *cdf.File, name string) float64 {
	v, ok := f.Header.GetAttribute("", name).([]float64)
	if !ok || len(v) == 0 {
		return math.NaN()
	}
	return v[0]
}

func timeToNum(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func numToTime(v float64) time.Time {
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
