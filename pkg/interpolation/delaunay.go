package interpolation

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/fogleman/delaunay"
)

// ErrInsufficientPoints is returned when the samples do not span a triangle
var ErrInsufficientPoints = errors.New("insufficient points for triangulation")

// ProgressCallback is a function that reports progress during interpolation
type ProgressCallback func(completed, total int, message string)

// minBoxSize keeps R-tree rectangles non-degenerate
const minBoxSize = 1e-9

// Triangulation is a Delaunay triangulation of the finite planar sample
// positions of one point cloud, indexed for point location.
//
// A Triangulation is built once per rasterization and reused for every
// gridded field. It is safe for concurrent queries.
type Triangulation struct {
	x, y      []float64
	source    []int // original sample index of every vertex
	triangles []int // three vertex ids per triangle
	tree      *rtreego.Rtree
	nSamples  int

	progressCallback ProgressCallback
}

// triangleBox wraps one triangle for R-tree storage
type triangleBox struct {
	id   int
	rect rtreego.Rect
}

// Bounds implements the rtreego.Spatial interface
func (b *triangleBox) Bounds() rtreego.Rect {
	return b.rect
}

// Build triangulates all samples with finite x and y. Samples with a NaN
// coordinate are skipped; interpolated values are later looked up by the
// original sample index, so value arrays keep the full sample length.
func Build(x, y []float64) (*Triangulation, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("x and y length mismatch: %d != %d", len(x), len(y))
	}

	t := &Triangulation{nSamples: len(x)}
	points := make([]delaunay.Point, 0, len(x))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		points = append(points, delaunay.Point{X: x[i], Y: y[i]})
		t.x = append(t.x, x[i])
		t.y = append(t.y, y[i])
		t.source = append(t.source, i)
	}
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: %d finite samples", ErrInsufficientPoints, len(points))
	}

	tri, err := delaunay.Triangulate(points)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientPoints, err)
	}
	if len(tri.Triangles) < 3 {
		return nil, fmt.Errorf("%w: samples are collinear", ErrInsufficientPoints)
	}
	t.triangles = tri.Triangles

	boxes := make([]rtreego.Spatial, 0, len(t.triangles)/3)
	for id := 0; id < len(t.triangles)/3; id++ {
		boxes = append(boxes, &triangleBox{id: id, rect: t.triangleRect(id)})
	}
	t.tree = rtreego.NewTree(2, 25, 50, boxes...)

	return t, nil
}

func (t *Triangulation) triangleRect(id int) rtreego.Rect {
	a, b, c := t.triangles[3*id], t.triangles[3*id+1], t.triangles[3*id+2]
	minX := math.Min(t.x[a], math.Min(t.x[b], t.x[c]))
	maxX := math.Max(t.x[a], math.Max(t.x[b], t.x[c]))
	minY := math.Min(t.y[a], math.Min(t.y[b], t.y[c]))
	maxY := math.Max(t.y[a], math.Max(t.y[b], t.y[c]))

	lengths := []float64{math.Max(maxX-minX, minBoxSize), math.Max(maxY-minY, minBoxSize)}
	rect, _ := rtreego.NewRect(rtreego.Point{minX, minY}, lengths)
	return rect
}

// NumTriangles returns the number of triangles
func (t *Triangulation) NumTriangles() int {
	return len(t.triangles) / 3
}

// NumVertices returns the number of triangulated samples
func (t *Triangulation) NumVertices() int {
	return len(t.source)
}

// NumSamples returns the length of the sample arrays the triangulation was built from
func (t *Triangulation) NumSamples() int {
	return t.nSamples
}

// SetProgressCallback sets a callback function to report progress
func (t *Triangulation) SetProgressCallback(callback ProgressCallback) {
	t.progressCallback = callback
}

func (t *Triangulation) reportProgress(completed, total int, message string) {
	if t.progressCallback != nil {
		t.progressCallback(completed, total, message)
	}
}

// barycentric returns the barycentric coordinates of (qx, qy) in triangle id
func (t *Triangulation) barycentric(id int, qx, qy float64) (l1, l2, l3 float64) {
	a, b, c := t.triangles[3*id], t.triangles[3*id+1], t.triangles[3*id+2]
	ax, ay := t.x[a], t.y[a]
	bx, by := t.x[b], t.y[b]
	cx, cy := t.x[c], t.y[c]

	det := (by-cy)*(ax-cx) + (cx-bx)*(ay-cy)
	if det == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	l1 = ((by-cy)*(qx-cx) + (cx-bx)*(qy-cy)) / det
	l2 = ((cy-ay)*(qx-cx) + (ax-cx)*(qy-cy)) / det
	l3 = 1 - l1 - l2
	return l1, l2, l3
}

// Locate finds the triangle containing (qx, qy) and returns the original
// sample indices of its vertices together with the barycentric weights.
// ok is false when the point lies outside the triangulation or only yields
// weights with a negative component.
func (t *Triangulation) Locate(qx, qy float64) (vertices [3]int, weights [3]float64, ok bool) {
	vertices = [3]int{-1, -1, -1}
	nan := math.NaN()
	weights = [3]float64{nan, nan, nan}
	if math.IsNaN(qx) || math.IsNaN(qy) {
		return vertices, weights, false
	}

	hits := t.tree.SearchIntersect(rtreego.Point{qx, qy}.ToRect(minBoxSize))
	if len(hits) == 0 {
		return vertices, weights, false
	}
	ids := make([]int, len(hits))
	for i, h := range hits {
		ids[i] = h.(*triangleBox).id
	}
	sort.Ints(ids)

	for _, id := range ids {
		l1, l2, l3 := t.barycentric(id, qx, qy)
		if !(l1 >= 0 && l2 >= 0 && l3 >= 0) {
			continue
		}
		for k := 0; k < 3; k++ {
			vertices[k] = t.source[t.triangles[3*id+k]]
		}
		weights = [3]float64{l1, l2, l3}
		return vertices, weights, true
	}
	return vertices, weights, false
}

// Weights holds the interpolation weights of a set of query points. Each query
// owns three consecutive entries in Vertices and Lambdas.
type Weights struct {
	// Vertices are original sample indices, -1 for unresolved queries
	Vertices []int

	// Lambdas are barycentric weights, NaN for unresolved queries
	Lambdas []float64

	nSamples int
}

// Weights computes the interpolation weights of all query points. The queries
// are split across all CPU cores; each worker writes a disjoint range.
func (t *Triangulation) Weights(qx, qy []float64) *Weights {
	n := len(qx)
	w := &Weights{
		Vertices: make([]int, 3*n),
		Lambdas:  make([]float64, 3*n),
		nSamples: t.nSamples,
	}
	if n == 0 {
		return w
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > n {
		numWorkers = n
	}
	chunk := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for q := start; q < end; q++ {
				v, l, _ := t.Locate(qx[q], qy[q])
				copy(w.Vertices[3*q:3*q+3], v[:])
				copy(w.Lambdas[3*q:3*q+3], l[:])
			}
			mu.Lock()
			completed += end - start
			done := completed
			mu.Unlock()
			t.reportProgress(done, n, "computing interpolation weights")
		}(start, end)
	}
	wg.Wait()

	return w
}

// Len returns the number of query points
func (w *Weights) Len() int {
	return len(w.Vertices) / 3
}

// Resolved returns the number of query points inside the triangulation
func (w *Weights) Resolved() int {
	n := 0
	for q := 0; q < w.Len(); q++ {
		if w.Vertices[3*q] >= 0 {
			n++
		}
	}
	return n
}

// Apply interpolates one per-sample field at all query points. values must
// have the length of the sample arrays the triangulation was built from.
// Unresolved queries are NaN.
func (w *Weights) Apply(values []float64) ([]float64, error) {
	if len(values) != w.nSamples {
		return nil, fmt.Errorf("field has %d values, triangulation was built from %d samples", len(values), w.nSamples)
	}
	out := make([]float64, w.Len())
	for q := range out {
		v := w.Vertices[3*q : 3*q+3]
		if v[0] < 0 {
			out[q] = math.NaN()
			continue
		}
		l := w.Lambdas[3*q : 3*q+3]
		out[q] = l[0]*values[v[0]] + l[1]*values[v[1]] + l[2]*values[v[2]]
	}
	return out, nil
}

// GridData is the one-shot linear interpolation of a single field. It builds a
// triangulation, computes the weights and discards both.
func GridData(x, y, values, qx, qy []float64) ([]float64, error) {
	if len(values) != len(x) {
		return nil, fmt.Errorf("field has %d values for %d samples", len(values), len(x))
	}
	if len(qx) != len(qy) {
		return nil, fmt.Errorf("query x and y length mismatch: %d != %d", len(qx), len(qy))
	}
	t, err := Build(x, y)
	if err != nil {
		return nil, err
	}
	return t.Weights(qx, qy).Apply(values)
}
