// Package nanstat provides NaN-aware reductions over float64 slices.
// NaN marks a missing sample throughout alsdem, so every statistic here
// ignores NaN values and returns NaN when no finite value remains.
package nanstat

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Finite returns the non-NaN, non-Inf values of x in a new slice
func Finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Median returns the median of the finite values. With an even count the
// two middle values are averaged.
func Median(x []float64) float64 {
	v := Finite(x)
	n := len(v)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return 0.5 * (v[n/2-1] + v[n/2])
}

// Mean returns the mean of the finite values
func Mean(x []float64) float64 {
	v := Finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// Min returns the smallest finite value
func Min(x []float64) float64 {
	v := Finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Min(v)
}

// Max returns the largest finite value
func Max(x []float64) float64 {
	v := Finite(x)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Max(v)
}

// Count returns the number of finite values
func Count(x []float64) int {
	n := 0
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n++
		}
	}
	return n
}
