package nanstat

import (
	"math"
	"testing"
)

func TestReductions(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		data   []float64
		median float64
		mean   float64
		min    float64
		max    float64
	}{
		{"odd", []float64{3, 1, 2}, 2, 2, 1, 3},
		{"even averages middle", []float64{4, 1, 3, 2}, 2.5, 2.5, 1, 4},
		{"ignores nan", []float64{nan, 5, nan, 1}, 3, 3, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.data); got != tt.median {
				t.Errorf("Median = %v, want %v", got, tt.median)
			}
			if got := Mean(tt.data); got != tt.mean {
				t.Errorf("Mean = %v, want %v", got, tt.mean)
			}
			if got := Min(tt.data); got != tt.min {
				t.Errorf("Min = %v, want %v", got, tt.min)
			}
			if got := Max(tt.data); got != tt.max {
				t.Errorf("Max = %v, want %v", got, tt.max)
			}
		})
	}
}

func TestAllNaN(t *testing.T) {
	data := []float64{math.NaN(), math.NaN()}
	for name, got := range map[string]float64{
		"median": Median(data),
		"mean":   Mean(data),
		"min":    Min(data),
		"max":    Max(data),
	} {
		if !math.IsNaN(got) {
			t.Errorf("%s of all-NaN input should be NaN, got %v", name, got)
		}
	}
	if Count(data) != 0 {
		t.Errorf("Expected zero finite values")
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	data := []float64{3, 1, 2}
	Median(data)
	if data[0] != 3 || data[1] != 1 || data[2] != 2 {
		t.Errorf("input was modified: %v", data)
	}
}
