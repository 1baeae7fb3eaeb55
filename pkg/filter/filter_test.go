package filter

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"alsdem/internal/models"
	"alsdem/pkg/config"
)

func createTestPointCloud(t *testing.T, lines ...[]float64) *models.PointCloud {
	t.Helper()
	nShots := len(lines[0])
	pc := models.NewPointCloud(len(lines), nShots)
	var elev []float64
	for _, l := range lines {
		elev = append(elev, l...)
	}
	if err := pc.Set(models.FieldElevation, elev); err != nil {
		t.Fatal(err)
	}
	return pc
}

func TestAtmosphericBackscatterRemovesSpikes(t *testing.T) {
	nan := math.NaN()
	pc := createTestPointCloud(t,
		[]float64{1, 1.2, 30, 1.1, 1.0, 0.9},
		[]float64{2, 2, -20, 2, nan, 2},
		[]float64{0, 10, 20, 30, 40, 50},
	)
	f := NewAtmosphericBackscatter(5)
	if err := f.Apply(pc); err != nil {
		t.Fatal(err)
	}

	want := []float64{
		1, 1.2, nan, 1.1, 1.0, 0.9,
		2, 2, nan, 2, nan, 2,
		// a steep slope is not a spike
		0, 10, 20, 30, 40, 50,
	}
	got := pc.MustGet(models.FieldElevation)
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestAtmosphericBackscatterGapsAreFilled(t *testing.T) {
	nan := math.NaN()
	// without the median fill the spike would have no left neighbour
	pc := createTestPointCloud(t, []float64{5, nan, 50, 5, 5})
	if err := NewAtmosphericBackscatter(5).Apply(pc); err != nil {
		t.Fatal(err)
	}
	got := pc.MustGet(models.FieldElevation)
	if !math.IsNaN(got[2]) {
		t.Errorf("spike next to a gap kept: %v", got)
	}
	if got[0] != 5 || !math.IsNaN(got[1]) {
		t.Errorf("other samples changed: %v", got)
	}
}

func TestAtmosphericBackscatterEdgesAndEmptyLines(t *testing.T) {
	nan := math.NaN()
	pc := createTestPointCloud(t,
		[]float64{100, 0, 0, 0, -100},
		[]float64{nan, nan, nan, nan, nan},
	)
	if err := NewAtmosphericBackscatter(1).Apply(pc); err != nil {
		t.Fatal(err)
	}
	got := pc.MustGet(models.FieldElevation)
	if got[0] != 100 || got[4] != -100 {
		t.Errorf("first and last shot have one neighbour only and are kept: %v", got[:5])
	}
}

func TestAtmosphericBackscatterNeedsElevation(t *testing.T) {
	pc := models.NewPointCloud(1, 3)
	if err := NewAtmosphericBackscatter(5).Apply(pc); err == nil {
		t.Error("Expected error for missing elevation")
	}
}

func TestFromConfig(t *testing.T) {
	chain, err := FromConfig(config.DefaultConfig().Filters)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 1 || chain.Name() != NameAtmosphericBackscatter {
		t.Fatalf("unexpected chain %q", chain.Name())
	}
	if f := chain[0].(*AtmosphericBackscatter); f.Threshold != 5 {
		t.Errorf("threshold %v", f.Threshold)
	}

	_, err = FromConfig([]config.FilterConfig{{Name: "freeboard"}})
	if !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("Expected ErrUnknownFilter, got %v", err)
	}
}

type recordingFilter struct {
	name  string
	calls *[]string
	err   error
}

func (f recordingFilter) Name() string { return f.name }

func (f recordingFilter) Apply(pc *models.PointCloud) error {
	*f.calls = append(*f.calls, f.name)
	return f.err
}

func TestChainOrderAndErrors(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	chain := Chain{
		recordingFilter{"a", &calls, nil},
		recordingFilter{"b", &calls, boom},
		recordingFilter{"c", &calls, nil},
	}
	err := chain.Apply(models.NewPointCloud(1, 1))
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, calls); diff != "" {
		t.Errorf("call order (-want +got):\n%s", diff)
	}
	if chain.Name() != "a,b,c" {
		t.Errorf("Name = %q", chain.Name())
	}
}

// shiftSystem moves every position east by one degree per hour since t0
type shiftSystem struct {
	t0    time.Time
	times []time.Time
}

func (s *shiftSystem) Correct(t []time.Time, lon, lat []float64) error {
	s.times = t
	for i := range lon {
		lon[i] -= t[i].Sub(s.t0).Hours()
	}
	return nil
}

func TestIceDriftCorrection(t *testing.T) {
	nan := math.NaN()
	pc := models.NewPointCloud(1, 3)
	pc.SegmentStart = time.Date(2020, 3, 1, 1, 0, 0, 0, time.UTC)
	pc.SegmentEnd = pc.SegmentStart.Add(time.Hour)
	pc.Set(models.FieldTimestamp, []float64{3600, 5400, 7200})
	pc.Set(models.FieldLongitude, []float64{10, nan, 12})
	pc.Set(models.FieldLatitude, []float64{80, 80, 80})

	sys := &shiftSystem{t0: time.Date(2020, 3, 1, 1, 0, 0, 0, time.UTC)}
	f := &IceDriftCorrection{System: sys}
	if err := f.Apply(pc); err != nil {
		t.Fatal(err)
	}

	want := []float64{10, nan, 11}
	if diff := cmp.Diff(want, pc.MustGet(models.FieldLongitude), cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("longitude (-want +got):\n%s", diff)
	}
	if len(sys.times) != 2 || !sys.times[1].Equal(time.Date(2020, 3, 1, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("system called with %v", sys.times)
	}

	if err := (&IceDriftCorrection{}).Apply(pc); err == nil {
		t.Error("Expected error without ice coordinate system")
	}
}
