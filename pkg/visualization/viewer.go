// Package visualization renders quick-look images of gridded elevation data.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Viewer renders a row-major grid of ny rows with nx values, row 0 at the
// smallest y coordinate. NaN cells are no data.
type Viewer struct {
	// data holds the gridded values
	data []float64

	// node coordinates
	xc []float64
	yc []float64

	// Title is drawn above heat map plots
	Title string
}

// NewViewer creates a viewer for a grid with the given node coordinates
func NewViewer(data, xc, yc []float64) (*Viewer, error) {
	if len(xc) == 0 || len(yc) == 0 {
		return nil, fmt.Errorf("empty grid (%d x %d)", len(yc), len(xc))
	}
	if len(data) != len(xc)*len(yc) {
		return nil, fmt.Errorf("grid has %d values, expected %d x %d", len(data), len(yc), len(xc))
	}
	return &Viewer{data: data, xc: xc, yc: yc}, nil
}

// Dims returns the number of columns and rows
func (v *Viewer) Dims() (c, r int) {
	return len(v.xc), len(v.yc)
}

// Z returns the value of column c and row r
func (v *Viewer) Z(c, r int) float64 {
	return v.data[r*len(v.xc)+c]
}

// X returns the x coordinate of column c
func (v *Viewer) X(c int) float64 {
	return v.xc[c]
}

// Y returns the y coordinate of row r
func (v *Viewer) Y(r int) float64 {
	return v.yc[r]
}

// Min returns the smallest finite value
func (v *Viewer) Min() float64 {
	lo, _ := v.valueRange()
	return lo
}

// Max returns the largest finite value
func (v *Viewer) Max() float64 {
	_, hi := v.valueRange()
	return hi
}

func (v *Viewer) valueRange() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, z := range v.data {
		if math.IsNaN(z) || math.IsInf(z, 0) {
			continue
		}
		lo = math.Min(lo, z)
		hi = math.Max(hi, z)
	}
	return lo, hi
}

// Image renders the grid north-up as 16 bit grayscale stretched between the
// smallest and largest finite value. No data cells are black.
func (v *Viewer) Image() *image.Gray16 {
	nx, ny := v.Dims()
	img := image.NewGray16(image.Rect(0, 0, nx, ny))

	lo, hi := v.valueRange()
	span := hi - lo
	for r := 0; r < ny; r++ {
		row := ny - 1 - r
		for c := 0; c < nx; c++ {
			z := v.Z(c, r)
			if math.IsNaN(z) || math.IsInf(z, 0) {
				continue
			}
			scaled := 1.0
			if span > 0 {
				scaled = (z - lo) / span
			}
			// keep 0 for no data
			value := uint16(1 + math.Round(math.Max(0, math.Min(1, scaled))*65534))
			img.SetGray16(c, row, color.Gray16{Y: value})
		}
	}
	return img
}

// ExtractRegion copies a sub grid starting at column startX and row startY
func (v *Viewer) ExtractRegion(startX, startY, sizeX, sizeY int) ([]float64, error) {
	if startX < 0 || startY < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	nx, ny := v.Dims()
	if startX+sizeX > nx || startY+sizeY > ny {
		return nil, fmt.Errorf("region extends beyond grid boundaries")
	}

	region := make([]float64, sizeX*sizeY)
	for y := 0; y < sizeY; y++ {
		copy(region[y*sizeX:(y+1)*sizeX], v.data[(startY+y)*nx+startX:(startY+y)*nx+startX+sizeX])
	}
	return region, nil
}

// SaveImage writes the grayscale rendering as PNG
func (v *Viewer) SaveImage(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, v.Image()); err != nil {
		return fmt.Errorf("error encoding %s: %w", filename, err)
	}
	return file.Close()
}

// SavePlot writes a heat map plot with axes in projection coordinates. The
// file format follows the extension (png, svg, pdf).
func (v *Viewer) SavePlot(filename string) error {
	lo, hi := v.valueRange()
	if math.IsInf(lo, 0) {
		return fmt.Errorf("grid has no finite values")
	}

	p := plot.New()
	p.Title.Text = v.Title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	hm := plotter.NewHeatMap(v, palette.Heat(255, 1))
	hm.NaN = color.Transparent
	if hi == lo {
		hm.Max = lo + 1
	}
	p.Add(hm)

	nx, ny := v.Dims()
	width := 6 * vg.Inch
	height := width * vg.Length(float64(ny)/float64(nx))
	if height < 2*vg.Inch {
		height = 2 * vg.Inch
	}
	if height > 12*vg.Inch {
		height = 12 * vg.Inch
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	if err := p.Save(width, height, filename); err != nil {
		return fmt.Errorf("save heat map plot: %w", err)
	}
	return nil
}
