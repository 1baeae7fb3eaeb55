package grid

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func boolGrid(rows ...string) []bool {
	var out []bool
	for _, row := range rows {
		for _, c := range row {
			out = append(out, c == '#')
		}
	}
	return out
}

func TestMaximumFilterDilatesSquare(t *testing.T) {
	in := boolGrid(
		".....",
		".....",
		"..#..",
		".....",
		".....",
	)
	want := boolGrid(
		".....",
		".###.",
		".###.",
		".###.",
		".....",
	)
	got, err := MaximumFilter(in, 5, 5, 3, "nearest")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMaximumFilterEvenSize(t *testing.T) {
	// window of size 2 covers offsets -1 and 0
	in := boolGrid("..#..")
	want := boolGrid("..##.")
	got, err := MaximumFilter(in, 5, 1, 2, "constant")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMaximumFilterBoundaryModes(t *testing.T) {
	tests := []struct {
		mode string
		in   string
		size int
		want string
	}{
		{"nearest", "#....", 3, "##..."},
		{"constant", "#....", 3, "##..."},
		{"wrap", "#....", 3, "##..#"},
		{"wrap", "....#", 3, "#..##"},
		{"reflect", "..#..", 4, ".####"},
		{"mirror", "..#..", 4, "#####"},
	}
	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.in, func(t *testing.T) {
			got, err := MaximumFilter(boolGrid(tt.in), 5, 1, tt.size, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(boolGrid(tt.want), got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMaximumFilterErrors(t *testing.T) {
	if _, err := MaximumFilter(make([]bool, 4), 2, 2, 3, "periodic"); err == nil {
		t.Error("Expected error for unknown boundary mode")
	}
	if _, err := MaximumFilter(make([]bool, 3), 2, 2, 3, "nearest"); err == nil {
		t.Error("Expected error for shape mismatch")
	}
	if _, err := MaximumFilter(make([]bool, 4), 2, 2, 0, "nearest"); err == nil {
		t.Error("Expected error for zero size")
	}
}

func TestFillGapsClosesInteriorHoles(t *testing.T) {
	// true = no data
	raw := boolGrid(
		"#######",
		"#.....#",
		"#..#..#",
		"#.....#",
		"#######",
	)
	got, err := FillGaps(raw, 7, 5, DefaultGapFilter())
	if err != nil {
		t.Fatal(err)
	}
	// the hole is filled
	if got[2*7+3] {
		t.Error("interior hole still masked")
	}
	// dilation only removes cells from the no-data mask
	for k := range got {
		if got[k] && !raw[k] {
			t.Errorf("cell %d became masked", k)
		}
	}
}

func TestFillGapsNone(t *testing.T) {
	raw := boolGrid("#.#", "...")
	got, err := FillGaps(raw, 3, 2, GapFilterSettings{Algorithm: GapFilterNone})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(raw, got); diff != "" {
		t.Errorf("mask changed (-want +got):\n%s", diff)
	}
}

func TestFillGapsUnknownAlgorithm(t *testing.T) {
	_, err := FillGaps(make([]bool, 4), 2, 2, GapFilterSettings{Algorithm: "median_filter", Size: 3})
	if !errors.Is(err, ErrUnknownGapFilter) {
		t.Errorf("Expected ErrUnknownGapFilter, got %v", err)
	}
}
