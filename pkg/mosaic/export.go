package mosaic

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ctessum/cdf"

	"alsdem/pkg/visualization"
)

// ExportNetCDF writes elevation, longitude and latitude of the merged grid as
// float32 variables over (yc, xc)
func (m *Merged) ExportNetCDF(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	h := cdf.NewHeader([]string{"yc", "xc"}, []int{m.NY(), m.NX()})
	h.AddAttribute("", "cdm_data_type", "grid")
	h.AddAttribute("", "proj4_string", m.Proj4)
	h.AddAttribute("", "geospatial_resolution", []float64{m.Resolution})
	h.AddAttribute("", "number_of_tiles", []int32{int32(m.NumTiles)})

	h.AddVariable("xc", []string{"xc"}, []float32{0})
	h.AddAttribute("xc", "units", "m")
	h.AddVariable("yc", []string{"yc"}, []float32{0})
	h.AddAttribute("yc", "units", "m")
	h.AddVariable("elevation", []string{"yc", "xc"}, []float32{0})
	h.AddAttribute("elevation", "long_name", "elevation relative to tile median")
	h.AddAttribute("elevation", "units", "m")
	h.AddVariable("lon", []string{"yc", "xc"}, []float32{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("lat", []string{"yc", "xc"}, []float32{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating mosaic file: %w", err)
	}
	defer f.Close()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("error writing netCDF header: %w", err)
	}
	for _, v := range []struct {
		name string
		data []float64
	}{
		{"xc", m.XC},
		{"yc", m.YC},
		{"elevation", m.Elevation},
		{"lon", m.Lon},
		{"lat", m.Lat},
	} {
		if err := writeFloat32(nc, v.name, v.data); err != nil {
			return err
		}
	}
	return f.Close()
}

func writeFloat32(f *cdf.File, name string, data []float64) error {
	data32 := make([]float32, len(data))
	for i, v := range data {
		data32[i] = float32(v)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err := f.Writer(name, start, end).Write(data32); err != nil {
		return fmt.Errorf("error writing variable %s: %w", name, err)
	}
	return nil
}

// ExportASCII writes the elevation as an ESRI ASCII grid with the first row
// at the northern edge and NaN as no data value. The projection is written
// to a .proj4 file next to it.
func (m *Merged) ExportASCII(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating ASCII grid: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "ncols %d\n", m.NX())
	fmt.Fprintf(w, "nrows %d\n", m.NY())
	fmt.Fprintf(w, "xllcenter %s\n", formatFloat(m.XC[0]))
	fmt.Fprintf(w, "yllcenter %s\n", formatFloat(m.YC[0]))
	fmt.Fprintf(w, "cellsize %s\n", formatFloat(m.Resolution))
	fmt.Fprintf(w, "NODATA_value NaN\n")

	nx := m.NX()
	for j := m.NY() - 1; j >= 0; j-- {
		for i := 0; i < nx; i++ {
			if i > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(formatFloat(m.Elevation[j*nx+i]))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("error writing ASCII grid: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	sidecar := path[:len(path)-len(filepath.Ext(path))] + ".proj4"
	return os.WriteFile(sidecar, []byte(m.Proj4+"\n"), 0644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 32)
}

// ExportPNG writes a heat map plot of the merged elevation
func (m *Merged) ExportPNG(path string) error {
	v, err := visualization.NewViewer(m.Elevation, m.XC, m.YC)
	if err != nil {
		return err
	}
	v.Title = fmt.Sprintf("mosaic of %d tiles (%gm)", m.NumTiles, m.Resolution)
	return v.SavePlot(path)
}

// Export writes the merged grid in each of the given formats (netcdf, ascii,
// png) to files named base plus the format extension
func (m *Merged) Export(base string, formats []string) ([]string, error) {
	var written []string
	for _, format := range formats {
		var (
			path string
			err  error
		)
		switch format {
		case "netcdf":
			path = base + ".nc"
			err = m.ExportNetCDF(path)
		case "ascii":
			path = base + ".asc"
			err = m.ExportASCII(path)
		case "png":
			path = base + ".png"
			err = m.ExportPNG(path)
		default:
			err = fmt.Errorf("unknown export format %q", format)
		}
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
