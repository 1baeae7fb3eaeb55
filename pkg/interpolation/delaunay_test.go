package interpolation

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// createTestSamples returns n random samples in a square of the given size.
// The four corners are always included so the convex hull is the square.
func createTestSamples(n int, size float64, seed int64) (x, y []float64) {
	rng := rand.New(rand.NewSource(seed))
	x = []float64{0, size, 0, size}
	y = []float64{0, 0, size, size}
	for i := 0; i < n; i++ {
		x = append(x, rng.Float64()*size)
		y = append(y, rng.Float64()*size)
	}
	return x, y
}

func planar(x, y []float64) []float64 {
	z := make([]float64, len(x))
	for i := range x {
		z[i] = 2*x[i] + 3*y[i]
	}
	return z
}

func TestBuild(t *testing.T) {
	x, y := createTestSamples(50, 100, 1)
	tri, err := Build(x, y)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tri.NumVertices() != len(x) {
		t.Errorf("Expected %d vertices, got %d", len(x), tri.NumVertices())
	}
	// Euler: a triangulation of n points with h hull vertices has 2n-2-h triangles
	if want := 2*len(x) - 2 - 4; tri.NumTriangles() != want {
		t.Errorf("Expected %d triangles, got %d", want, tri.NumTriangles())
	}
}

func TestBuildInsufficientPoints(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		x, y []float64
	}{
		{"two points", []float64{0, 1}, []float64{0, 1}},
		{"nan leaves two", []float64{0, nan, 1}, []float64{0, 5, 1}},
		{"collinear", []float64{0, 1, 2, 3}, []float64{0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.x, tt.y)
			if !errors.Is(err, ErrInsufficientPoints) {
				t.Errorf("Expected ErrInsufficientPoints, got %v", err)
			}
		})
	}
}

func TestVertexWeightsReproduceSamples(t *testing.T) {
	x, y := createTestSamples(60, 100, 2)
	rng := rand.New(rand.NewSource(3))
	values := make([]float64, len(x))
	for i := range values {
		values[i] = rng.NormFloat64() * 10
	}

	tri, err := Build(x, y)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	w := tri.Weights(x, y)
	for q := 0; q < w.Len(); q++ {
		l := w.Lambdas[3*q : 3*q+3]
		ones, zeros := 0, 0
		for _, v := range l {
			switch v {
			case 1:
				ones++
			case 0:
				zeros++
			}
		}
		if ones != 1 || zeros != 2 {
			t.Errorf("sample %d: weights %v are not a unit vector", q, l)
		}
	}

	got, err := w.Apply(values)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(values, got); diff != "" {
		t.Errorf("values at sample positions differ (-want +got):\n%s", diff)
	}
}

func TestOutsideHullIsNaN(t *testing.T) {
	x, y := createTestSamples(30, 10, 4)
	tri, err := Build(x, y)
	if err != nil {
		t.Fatal(err)
	}

	qx := []float64{-0.5, 10.5, 5, 5, math.NaN()}
	qy := []float64{5, 5, -3, 12, 5}
	w := tri.Weights(qx, qy)
	if w.Resolved() != 0 {
		t.Errorf("Expected no resolved queries, got %d", w.Resolved())
	}
	got, err := w.Apply(planar(x, y))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("query %d outside hull interpolated to %v", i, v)
		}
		if w.Vertices[3*i] != -1 {
			t.Errorf("query %d outside hull has vertex %d", i, w.Vertices[3*i])
		}
	}
}

func TestLinearFieldIsReproduced(t *testing.T) {
	x, y := createTestSamples(200, 100, 5)
	rng := rand.New(rand.NewSource(6))
	qx := make([]float64, 500)
	qy := make([]float64, 500)
	for i := range qx {
		qx[i] = 1 + rng.Float64()*98
		qy[i] = 1 + rng.Float64()*98
	}

	got, err := GridData(x, y, planar(x, y), qx, qy)
	if err != nil {
		t.Fatalf("GridData failed: %v", err)
	}
	resolved := 0
	for i := range got {
		if math.IsNaN(got[i]) {
			continue
		}
		resolved++
		want := 2*qx[i] + 3*qy[i]
		if math.Abs(got[i]-want) > 1e-6 {
			t.Errorf("query (%v, %v): got %v, want %v", qx[i], qy[i], got[i], want)
		}
	}
	if resolved < len(got)-1 {
		t.Errorf("Expected interior queries to resolve, only %d of %d did", resolved, len(got))
	}
}

func TestNaNSamplesKeepOriginalIndices(t *testing.T) {
	nan := math.NaN()
	x := []float64{0, nan, 10, 0, 10}
	y := []float64{0, nan, 0, 10, 10}
	values := []float64{1, 999, 2, 3, 4}

	tri, err := Build(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if tri.NumSamples() != 5 || tri.NumVertices() != 4 {
		t.Fatalf("Expected 5 samples and 4 vertices, got %d and %d", tri.NumSamples(), tri.NumVertices())
	}

	got, err := tri.Weights([]float64{0, 10}, []float64{0, 10}).Apply(values)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{1, 4}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyLengthMismatch(t *testing.T) {
	x, y := createTestSamples(5, 1, 7)
	tri, err := Build(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tri.Weights([]float64{0.5}, []float64{0.5}).Apply([]float64{1, 2}); err == nil {
		t.Error("Expected error for short value array")
	}
}

func TestWeightsReusedAcrossFields(t *testing.T) {
	x, y := createTestSamples(40, 50, 8)
	qx := []float64{10.25, 20.5, 33.125, -5}
	qy := []float64{12.75, 40.5, 7.0625, 3}

	tri, err := Build(x, y)
	if err != nil {
		t.Fatal(err)
	}
	w := tri.Weights(qx, qy)

	fields := [][]float64{planar(x, y), make([]float64, len(x))}
	for i := range fields[1] {
		fields[1][i] = x[i] * x[i]
	}
	for i, field := range fields {
		reused, err := w.Apply(field)
		if err != nil {
			t.Fatal(err)
		}
		oneShot, err := GridData(x, y, field, qx, qy)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(oneShot, reused, cmpopts.EquateNaNs()); diff != "" {
			t.Errorf("field %d: reused weights differ from one-shot (-want +got):\n%s", i, diff)
		}
	}
}

func TestProgressCallback(t *testing.T) {
	x, y := createTestSamples(20, 10, 9)
	tri, err := Build(x, y)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	maxCompleted, total := 0, 0
	tri.SetProgressCallback(func(completed, n int, message string) {
		mu.Lock()
		defer mu.Unlock()
		if completed > maxCompleted {
			maxCompleted = completed
		}
		total = n
	})

	qx := make([]float64, 100)
	qy := make([]float64, 100)
	tri.Weights(qx, qy)

	if total != 100 || maxCompleted != 100 {
		t.Errorf("Expected progress to reach 100/100, got %d/%d", maxCompleted, total)
	}
}
