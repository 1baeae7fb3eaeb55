// Package demgen turns ALS L1B files into DEM tiles.
//
// The time range of a file is split into segments of fixed length. Every
// segment is read, filtered, gridded and written as one netCDF tile. Segments
// are independent and processed on a bounded pool of workers, each owning its
// point cloud, triangulation and grid buffers.
package demgen

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"alsdem/pkg/catalog"
	"alsdem/pkg/config"
	"alsdem/pkg/filter"
	"alsdem/pkg/grid"
	"alsdem/pkg/interpolation"
	"alsdem/pkg/logging"
	"alsdem/pkg/reader"
	"alsdem/pkg/tile"
	"alsdem/pkg/visualization"
)

// DefaultPrefix is the file name prefix of written tiles
const DefaultPrefix = "als"

// Params holds the generation parameters
type Params struct {
	// InputFile is the L1B file to grid
	InputFile string

	// OutputDir receives the tiles
	OutputDir string

	// Prefix of the tile file names
	Prefix string

	// NumWorkers is the number of segments gridded in parallel
	NumWorkers int

	// SegmentLenSecs is the length of one tile in seconds
	SegmentLenSecs int

	// Start and Stop limit the processed time range in seconds of the day.
	// Zero values select the start or end of the file.
	Start, Stop uint32

	// Settings for gridding and gap filling
	Settings grid.Settings

	// Variables limits the gridded fields, empty grids all fields
	Variables []string

	// Filters are applied to each segment before gridding
	Filters filter.Chain

	// Catalog records every written tile if not nil
	Catalog *catalog.Catalog

	// QuickLook writes a PNG heat map next to every tile
	QuickLook bool
}

// ParamsFromConfig builds generation parameters for one input file
func ParamsFromConfig(cfg *config.Config, inputFile string) (*Params, error) {
	chain, err := filter.FromConfig(cfg.Filters)
	if err != nil {
		return nil, err
	}
	s := grid.Settings{
		Resolution:   cfg.Grid.Resolution,
		PadRatio:     cfg.Grid.PadRatio,
		Projection:   cfg.Grid.Projection,
		Algorithm:    cfg.Grid.Algorithm,
		AlignHeading: cfg.Grid.AlignHeading,
		GapFilter: grid.GapFilterSettings{
			Algorithm: cfg.Grid.GapFilter.Algorithm,
			Size:      cfg.Grid.GapFilter.Size,
			Mode:      cfg.Grid.GapFilter.Mode,
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Params{
		InputFile:      inputFile,
		OutputDir:      cfg.Processing.OutputDir,
		Prefix:         DefaultPrefix,
		NumWorkers:     cfg.Processing.NumWorkers,
		SegmentLenSecs: cfg.Grid.SegmentLenSecs,
		Settings:       s,
		Variables:      cfg.Grid.Variables,
		Filters:        chain,
		QuickLook:      cfg.Processing.QuickLook,
	}, nil
}

// Segment is a time window of the input file in seconds of the day
type Segment struct {
	Index       int
	Start, Stop uint32
}

// Segments splits [start, stop] into windows of length seconds. The last
// window ends at stop.
func Segments(start, stop uint32, length int) []Segment {
	if length <= 0 || stop <= start {
		return nil
	}
	var segs []Segment
	for s := uint64(start); s < uint64(stop); s += uint64(length) {
		e := s + uint64(length)
		if e > uint64(stop) {
			e = uint64(stop)
		}
		segs = append(segs, Segment{Index: len(segs), Start: uint32(s), Stop: uint32(e)})
	}
	return segs
}

// Stats summarizes one run
type Stats struct {
	Segments int
	Written  int
	Skipped  int
	Elapsed  time.Duration

	// Paths of the written tiles in segment order
	Paths []string
}

// Generator grids the segments of one L1B file
type Generator struct {
	params *Params

	mu      sync.Mutex
	stats   Stats
	written map[int]string
}

// NewGenerator creates a generator for the given parameters
func NewGenerator(params *Params) *Generator {
	return &Generator{params: params}
}

// Stats returns the statistics of the last run
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.stats
	s.Paths = append([]string(nil), g.stats.Paths...)
	return s
}

// Process grids every segment of the input file. Segments without enough
// samples for a grid are skipped, any other error stops the run.
func (g *Generator) Process(ctx context.Context) error {
	log := logging.With("demgen")
	p := g.params
	start := time.Now()

	if p.SegmentLenSecs <= 0 {
		return fmt.Errorf("segment length must be positive, got %d", p.SegmentLenSecs)
	}
	if err := p.Settings.Validate(); err != nil {
		return err
	}

	f, err := reader.Open(p.InputFile)
	if err != nil {
		return err
	}
	defer f.Close()

	t0, t1 := f.TimeBounds()
	if p.Start != 0 {
		t0 = p.Start
	}
	if p.Stop != 0 {
		t1 = p.Stop
	}
	if err := f.ValidateTimeRange(t0, t1); err != nil {
		return err
	}
	segs := Segments(t0, t1, p.SegmentLenSecs)

	g.mu.Lock()
	g.stats = Stats{Segments: len(segs)}
	g.written = make(map[int]string)
	g.mu.Unlock()

	workers := p.NumWorkers
	if workers < 1 {
		workers = 1
	}
	log.Info().
		Str("file", p.InputFile).
		Uint32("start", t0).
		Uint32("stop", t1).
		Int("segments", len(segs)).
		Int("workers", workers).
		Str("filters", p.Filters.Name()).
		Msg("processing file")

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, seg := range segs {
		seg := seg
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := g.processSegment(ctx, f, seg)
			g.mu.Lock()
			defer g.mu.Unlock()
			switch {
			case err == nil:
				g.stats.Written++
				g.written[seg.Index] = path
			case skippable(err):
				g.stats.Skipped++
				log.Warn().Err(err).Int("segment", seg.Index).
					Uint32("start", seg.Start).Uint32("stop", seg.Stop).
					Msg("segment skipped")
			default:
				return fmt.Errorf("segment %d (%d - %d): %w", seg.Index, seg.Start, seg.Stop, err)
			}
			return nil
		})
	}
	err = eg.Wait()

	g.mu.Lock()
	idx := make([]int, 0, len(g.written))
	for i := range g.written {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		g.stats.Paths = append(g.stats.Paths, g.written[i])
	}
	g.stats.Elapsed = time.Since(start)
	stats := g.stats
	g.mu.Unlock()

	if err != nil {
		return err
	}
	log.Info().
		Int("written", stats.Written).
		Int("skipped", stats.Skipped).
		Dur("elapsed", stats.Elapsed).
		Msg("file processed")
	return nil
}

// skippable reports errors that only affect a single segment
func skippable(err error) bool {
	return errors.Is(err, reader.ErrTimeRange) || errors.Is(err, interpolation.ErrInsufficientPoints)
}

func (g *Generator) processSegment(ctx context.Context, f *reader.File, seg Segment) (string, error) {
	p := g.params

	pc, err := f.Data(seg.Start, seg.Stop)
	if err != nil {
		return "", err
	}
	if len(p.Variables) > 0 {
		if err := pc.SetGridVariables(p.Variables...); err != nil {
			return "", err
		}
	}
	if err := p.Filters.Apply(pc); err != nil {
		return "", err
	}

	dem, err := grid.Create(pc, p.Settings)
	if err != nil {
		return "", err
	}
	t, err := tile.FromDEM(dem)
	if err != nil {
		return "", err
	}

	prefix := p.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	path := filepath.Join(p.OutputDir, dem.Filename(prefix, ".nc"))
	if err := t.Write(path); err != nil {
		return "", err
	}

	if p.Catalog != nil {
		if err := p.Catalog.Add(ctx, catalog.RecordFromTile(t)); err != nil {
			return "", err
		}
	}

	if p.QuickLook {
		if err := quickLook(t, strings.TrimSuffix(path, ".nc")+".png"); err != nil {
			logging.Warn().Err(err).Str("tile", t.Filename()).Msg("quick look failed")
		}
	}

	logging.Debug().
		Int("segment", seg.Index).
		Str("tile", t.Filename()).
		Int("n_valid", t.NumValid()).
		Msg("tile written")
	return path, nil
}

func quickLook(t *tile.Tile, path string) error {
	v, err := visualization.NewViewer(t.Elevation, t.XC, t.YC)
	if err != nil {
		return err
	}
	v.Title = strings.TrimSuffix(t.Filename(), ".nc")
	return v.SavePlot(path)
}
