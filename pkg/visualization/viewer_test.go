package visualization

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// createTestGrid builds a ramp z = x + 10*y with one no-data cell
func createTestGrid(nx, ny int) (data, xc, yc []float64) {
	xc = make([]float64, nx)
	yc = make([]float64, ny)
	for i := range xc {
		xc[i] = 100 + float64(i)*0.5
	}
	for j := range yc {
		yc[j] = -50 + float64(j)*0.5
	}
	data = make([]float64, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			data[j*nx+i] = float64(i) + 10*float64(j)
		}
	}
	data[1] = math.NaN()
	return data, xc, yc
}

func TestNewViewer(t *testing.T) {
	data, xc, yc := createTestGrid(4, 3)
	v, err := NewViewer(data, xc, yc)
	if err != nil {
		t.Fatal(err)
	}
	if c, r := v.Dims(); c != 4 || r != 3 {
		t.Errorf("Expected dims 4x3, got %dx%d", c, r)
	}
	if v.X(1) != 100.5 || v.Y(2) != -49 {
		t.Errorf("coordinates X(1)=%v Y(2)=%v", v.X(1), v.Y(2))
	}
	if v.Z(3, 2) != 23 {
		t.Errorf("Z(3, 2) = %v, want 23", v.Z(3, 2))
	}
	if v.Min() != 0 || v.Max() != 23 {
		t.Errorf("range [%v, %v], want [0, 23]", v.Min(), v.Max())
	}

	if _, err := NewViewer(data[:5], xc, yc); err == nil {
		t.Error("Expected error for shape mismatch, got nil")
	}
	if _, err := NewViewer(nil, nil, yc); err == nil {
		t.Error("Expected error for empty grid, got nil")
	}
}

func TestImageIsNorthUp(t *testing.T) {
	data, xc, yc := createTestGrid(4, 3)
	v, err := NewViewer(data, xc, yc)
	if err != nil {
		t.Fatal(err)
	}
	img := v.Image()

	b := img.Bounds()
	if b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("Expected image 4x3, got %dx%d", b.Dx(), b.Dy())
	}
	// the largest value sits in the last grid row, which is the top image row
	if got := img.Gray16At(3, 0).Y; got != 65535 {
		t.Errorf("top right pixel = %d, want 65535", got)
	}
	if got := img.Gray16At(0, 2).Y; got != 1 {
		t.Errorf("bottom left pixel = %d, want 1", got)
	}
	// no data
	if got := img.Gray16At(1, 2).Y; got != 0 {
		t.Errorf("no data pixel = %d, want 0", got)
	}
}

func TestImageConstantGrid(t *testing.T) {
	v, err := NewViewer([]float64{2, 2, 2, 2}, []float64{0, 1}, []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Image().Gray16At(0, 0).Y; got != 65535 {
		t.Errorf("constant grid pixel = %d, want 65535", got)
	}
}

func TestExtractRegion(t *testing.T) {
	data, xc, yc := createTestGrid(5, 4)
	v, err := NewViewer(data, xc, yc)
	if err != nil {
		t.Fatal(err)
	}

	region, err := v.ExtractRegion(2, 1, 3, 2)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}
	want := []float64{12, 13, 14, 22, 23, 24}
	if len(region) != len(want) {
		t.Fatalf("Expected region size %d, got %d", len(want), len(region))
	}
	for i := range want {
		if region[i] != want[i] {
			t.Errorf("region[%d] = %v, want %v", i, region[i], want[i])
		}
	}

	if _, err := v.ExtractRegion(-1, 0, 1, 1); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := v.ExtractRegion(0, 0, 0, 1); err == nil {
		t.Error("Expected error for zero size, got nil")
	}
	if _, err := v.ExtractRegion(4, 0, 2, 1); err == nil {
		t.Error("Expected error for region extending beyond grid, got nil")
	}
}

func TestSaveImage(t *testing.T) {
	data, xc, yc := createTestGrid(6, 4)
	v, err := NewViewer(data, xc, yc)
	if err != nil {
		t.Fatal(err)
	}

	filename := filepath.Join(t.TempDir(), "quicklook", "tile.png")
	if err := v.SaveImage(filename); err != nil {
		t.Fatalf("Failed to save image: %v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("saved file is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 6 || b.Dy() != 4 {
		t.Errorf("decoded image is %dx%d", b.Dx(), b.Dy())
	}
}

func TestSavePlot(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping plot rendering in short mode")
	}
	data, xc, yc := createTestGrid(8, 6)
	v, err := NewViewer(data, xc, yc)
	if err != nil {
		t.Fatal(err)
	}
	v.Title = "elevation"

	filename := filepath.Join(t.TempDir(), "plot.png")
	if err := v.SavePlot(filename); err != nil {
		t.Fatalf("Failed to save plot: %v", err)
	}
	if info, err := os.Stat(filename); err != nil || info.Size() == 0 {
		t.Errorf("plot file missing or empty: %v", err)
	}

	empty, _ := NewViewer([]float64{math.NaN(), math.NaN()}, []float64{0, 1}, []float64{0})
	if err := empty.SavePlot(filepath.Join(t.TempDir(), "empty.png")); err == nil {
		t.Error("Expected error for grid without finite values, got nil")
	}
}
