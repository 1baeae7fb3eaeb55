package grid

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"alsdem/internal/nanstat"
)

// Extent is a rectangle in projection coordinates
type Extent struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Width returns the extent in x
func (e Extent) Width() float64 { return e.XMax - e.XMin }

// Height returns the extent in y
func (e Extent) Height() float64 { return e.YMax - e.YMin }

// DataExtent returns the bounding box of the finite samples, padded by
// padRatio times its larger side and rounded outward to whole meters
func DataExtent(x, y []float64, padRatio float64) (Extent, error) {
	e := Extent{
		XMin: nanstat.Min(x),
		XMax: nanstat.Max(x),
		YMin: nanstat.Min(y),
		YMax: nanstat.Max(y),
	}
	if math.IsNaN(e.XMin) || math.IsNaN(e.YMin) {
		return Extent{}, fmt.Errorf("no finite sample positions")
	}
	pad := padRatio * math.Max(e.Width(), e.Height())
	return Extent{
		XMin: math.Floor(e.XMin - pad),
		XMax: math.Ceil(e.XMax + pad),
		YMin: math.Floor(e.YMin - pad),
		YMax: math.Ceil(e.YMax + pad),
	}, nil
}

// Mesh is a regular grid of nodes. Arrays over a mesh are row-major: NY rows
// of NX values, row j at y = YC[j] and column i at x = XC[i].
type Mesh struct {
	XC         []float64
	YC         []float64
	Resolution float64
}

// NewMesh covers an extent with nodes spaced by res. The node vectors run
// from the lower bound in steps of res up to the first node at or beyond the
// upper bound.
func NewMesh(e Extent, res float64) *Mesh {
	return &Mesh{
		XC:         arange(e.XMin, e.XMax+res, res),
		YC:         arange(e.YMin, e.YMax+res, res),
		Resolution: res,
	}
}

// arange returns start, start+step, ... for all values below stop
func arange(start, stop, step float64) []float64 {
	n := int(math.Ceil((stop - start) / step))
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// NX returns the number of columns
func (m *Mesh) NX() int { return len(m.XC) }

// NY returns the number of rows
func (m *Mesh) NY() int { return len(m.YC) }

// Len returns the number of nodes
func (m *Mesh) Len() int { return len(m.XC) * len(m.YC) }

// Index returns the flat index of row j and column i
func (m *Mesh) Index(j, i int) int { return j*len(m.XC) + i }

// Extent returns the rectangle spanned by the node coordinates
func (m *Mesh) Extent() Extent {
	return Extent{
		XMin: m.XC[0], XMax: m.XC[len(m.XC)-1],
		YMin: m.YC[0], YMax: m.YC[len(m.YC)-1],
	}
}

// Nodes returns the coordinates of all nodes in row-major order
func (m *Mesh) Nodes() (x, y []float64) {
	x = make([]float64, 0, m.Len())
	y = make([]float64, 0, m.Len())
	for _, yc := range m.YC {
		for _, xc := range m.XC {
			x = append(x, xc)
			y = append(y, yc)
		}
	}
	return x, y
}

// cellEdges returns n+1 bin edges centered on the n node coordinates
func cellEdges(c []float64, res float64) []float64 {
	edges := make([]float64, len(c)+1)
	if len(c) == 0 {
		return edges[:0]
	}
	return floats.Span(edges, c[0]-res/2, c[len(c)-1]+res/2)
}

// bin returns the histogram bin of v. Bins include their lower edge; the last
// bin also includes its upper edge. -1 means v is outside all bins.
func bin(edges []float64, v float64) int {
	n := len(edges) - 1
	if n < 1 || math.IsNaN(v) || v < edges[0] || v > edges[n] {
		return -1
	}
	if v == edges[n] {
		return n - 1
	}
	return sort.Search(len(edges), func(k int) bool { return edges[k] > v }) - 1
}

// Occupancy counts the samples falling into each mesh cell. Cells are
// centered on the nodes and extend half a resolution to each side. Samples
// with a NaN coordinate are not counted.
func Occupancy(x, y []float64, m *Mesh) []int {
	xEdges := cellEdges(m.XC, m.Resolution)
	yEdges := cellEdges(m.YC, m.Resolution)

	counts := make([]int, m.Len())
	for k := range x {
		if math.IsNaN(x[k]) || math.IsNaN(y[k]) {
			continue
		}
		i := bin(xEdges, x[k])
		j := bin(yEdges, y[k])
		if i < 0 || j < 0 {
			continue
		}
		counts[m.Index(j, i)]++
	}
	return counts
}
