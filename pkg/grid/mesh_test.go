package grid

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestArange(t *testing.T) {
	tests := []struct {
		start, stop, step float64
		want              int
	}{
		{0, 11, 1, 11},
		{-5, 5.25, 0.25, 41},
		{0, 10.3, 0.3, 35},
		{3, 3, 1, 0},
	}
	for _, tt := range tests {
		got := arange(tt.start, tt.stop, tt.step)
		if len(got) != tt.want {
			t.Errorf("arange(%v, %v, %v) has %d values, want %d", tt.start, tt.stop, tt.step, len(got), tt.want)
		}
		if len(got) > 0 && got[0] != tt.start {
			t.Errorf("arange starts at %v, want %v", got[0], tt.start)
		}
	}
}

func TestDataExtent(t *testing.T) {
	nan := math.NaN()
	x := []float64{10.2, nan, 30.7, 20}
	y := []float64{-4.5, nan, 5.5, 0}

	e, err := DataExtent(x, y, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	// width 20.5, height 10 -> pad 2.05
	want := Extent{XMin: 8, XMax: 33, YMin: -7, YMax: 8}
	if e != want {
		t.Errorf("DataExtent = %+v, want %+v", e, want)
	}

	if _, err := DataExtent([]float64{nan}, []float64{nan}, 0.1); err == nil {
		t.Error("Expected error without finite samples")
	}
}

func TestMeshCoversPaddedExtent(t *testing.T) {
	for _, res := range []float64{0.25, 0.3, 0.5, 1, 2.5} {
		x := []float64{101.3, 152.9, 130}
		y := []float64{-20.1, 7.7, 0}
		e, err := DataExtent(x, y, 0.05)
		if err != nil {
			t.Fatal(err)
		}
		m := NewMesh(e, res)
		if m.XC[0] > e.XMin || m.XC[m.NX()-1] < e.XMax {
			t.Errorf("res %v: xc [%v, %v] does not cover [%v, %v]", res, m.XC[0], m.XC[m.NX()-1], e.XMin, e.XMax)
		}
		if m.YC[0] > e.YMin || m.YC[m.NY()-1] < e.YMax {
			t.Errorf("res %v: yc [%v, %v] does not cover [%v, %v]", res, m.YC[0], m.YC[m.NY()-1], e.YMin, e.YMax)
		}
	}
}

func TestMeshNodesRowMajor(t *testing.T) {
	m := NewMesh(Extent{XMin: 0, XMax: 2, YMin: 10, YMax: 11}, 1)
	if m.NX() != 3 || m.NY() != 2 {
		t.Fatalf("Expected 3x2 mesh, got %dx%d", m.NX(), m.NY())
	}
	x, y := m.Nodes()
	if diff := cmp.Diff([]float64{0, 1, 2, 0, 1, 2}, x); diff != "" {
		t.Errorf("x mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{10, 10, 10, 11, 11, 11}, y); diff != "" {
		t.Errorf("y mismatch (-want +got):\n%s", diff)
	}
	if m.Index(1, 2) != 5 {
		t.Errorf("Index(1, 2) = %d, want 5", m.Index(1, 2))
	}
}

func TestOccupancy(t *testing.T) {
	m := NewMesh(Extent{XMin: 0, XMax: 2, YMin: 0, YMax: 1}, 1)
	nan := math.NaN()
	// x edges: -0.5 0.5 1.5 2.5, y edges: -0.5 0.5 1.5
	x := []float64{0, 0.5, 2.5, 1.2, nan, 3, -0.5}
	y := []float64{0, 0, 1.5, 0.9, 0, 0, -0.5}

	got := Occupancy(x, y, m)
	want := []int{
		2, 1, 0,
		0, 1, 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("occupancy mismatch (-want +got):\n%s", diff)
	}
}

func TestBinBoundaries(t *testing.T) {
	edges := []float64{0, 1, 2}
	tests := []struct {
		v    float64
		want int
	}{
		{-0.1, -1},
		{0, 0},
		{0.999, 0},
		{1, 1},
		{2, 1},
		{2.0001, -1},
		{math.NaN(), -1},
	}
	for _, tt := range tests {
		if got := bin(edges, tt.v); got != tt.want {
			t.Errorf("bin(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}
}
