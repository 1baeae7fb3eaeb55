package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"alsdem/pkg/catalog"
	"alsdem/pkg/logging"
	"alsdem/pkg/mosaic"
	"alsdem/pkg/reference"
)

func runMosaic(args []string) error {
	fs := flag.NewFlagSet("mosaic", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	output := fs.String("output", "", "Base path of the mosaic products (default: <outputDir>/mosaic)")
	resolution := fs.Float64("resolution", 0, "Mosaic resolution in meters (default from configuration)")
	refFile := fs.String("reference", "", "CSV reference trajectory for drift correction")
	maxDist := fs.Float64("max-dist", -1, "Exclude tiles further from the reference (meters, 0 disables)")
	formats := fs.String("formats", "", "Comma separated export formats: netcdf, ascii, png")
	from := fs.String("from", "", "Select catalog tiles from this time (RFC 3339)")
	to := fs.String("to", "", "Select catalog tiles up to this time (RFC 3339)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: alsdem mosaic [flags] [tile.nc ...]")
		fmt.Fprintln(fs.Output(), "Without tile arguments the tiles are selected from the catalog.")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *resolution > 0 {
		cfg.Mosaic.Resolution = *resolution
	}
	if *refFile != "" {
		cfg.Mosaic.ReferenceFile = *refFile
	}
	if *maxDist >= 0 {
		cfg.Mosaic.MaxDist2Ref = *maxDist
	}
	if *formats != "" {
		cfg.Mosaic.Exports = strings.Split(*formats, ",")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		paths, err = catalogPaths(filepath.Join(cfg.Processing.OutputDir, cfg.Processing.Catalog), *from, *to)
		if err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		return mosaic.ErrNoTiles
	}

	c, err := mosaic.LoadCollection(cfg.Mosaic.Resolution, paths)
	if err != nil {
		return err
	}

	if cfg.Mosaic.ReferenceFile != "" {
		ref, err := reference.Load(cfg.Mosaic.ReferenceFile)
		if err != nil {
			return err
		}
		if err := c.AddDriftCorrectionReference(ref); err != nil {
			return err
		}
		if cfg.Mosaic.MaxDist2Ref > 0 {
			if err := c.SetMaximumDist2Ref(cfg.Mosaic.MaxDist2Ref); err != nil {
				return err
			}
		}
	}

	merged, err := c.MergedGrid()
	if err != nil {
		return err
	}

	base := *output
	if base == "" {
		base = filepath.Join(cfg.Processing.OutputDir, "mosaic")
	}
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	written, err := merged.Export(base, cfg.Mosaic.Exports)
	if err != nil {
		return err
	}

	logging.Info().
		Int("tiles", c.Len()).
		Ints("ignored", c.IgnoreList()).
		Int("nx", merged.NX()).
		Int("ny", merged.NY()).
		Int("n_valid", merged.NumValid()).
		Msg("mosaic completed")
	for _, path := range written {
		fmt.Println(path)
	}
	return nil
}

func catalogPaths(path, from, to string) ([]string, error) {
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = time.Parse(time.RFC3339, from); err != nil {
			return nil, fmt.Errorf("invalid -from time: %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse(time.RFC3339, to); err != nil {
			return nil, fmt.Errorf("invalid -to time: %w", err)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no tiles given and no catalog: %w", err)
	}

	cat, err := catalog.Open(path)
	if err != nil {
		return nil, err
	}
	defer cat.Close()
	return cat.Paths(context.Background(), start, end)
}
