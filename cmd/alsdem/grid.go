package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"alsdem/pkg/catalog"
	"alsdem/pkg/demgen"
	"alsdem/pkg/logging"
)

func runGrid(args []string) error {
	fs := flag.NewFlagSet("grid", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	outputDir := fs.String("output", "", "Output directory (default from configuration)")
	workers := fs.Int("workers", 0, "Number of segments gridded in parallel (default from configuration)")
	segment := fs.Int("segment", 0, "Segment length in seconds (default from configuration)")
	start := fs.Uint("start", 0, "First second of the day to process (default: start of file)")
	stop := fs.Uint("stop", 0, "Last second of the day to process (default: end of file)")
	quickLook := fs.Bool("quicklook", false, "Write a PNG quick look next to every tile")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: alsdem grid [flags] file.l1b [file.l1b ...]")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *outputDir != "" {
		cfg.Processing.OutputDir = *outputDir
	}
	if *workers > 0 {
		cfg.Processing.NumWorkers = *workers
	}
	if *segment > 0 {
		cfg.Grid.SegmentLenSecs = *segment
	}
	if *quickLook {
		cfg.Processing.QuickLook = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Processing.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var cat *catalog.Catalog
	if cfg.Processing.Catalog != "" {
		cat, err = catalog.Open(filepath.Join(cfg.Processing.OutputDir, cfg.Processing.Catalog))
		if err != nil {
			return err
		}
		defer cat.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	startTime := time.Now()
	total := 0
	for _, input := range fs.Args() {
		params, err := demgen.ParamsFromConfig(cfg, input)
		if err != nil {
			return err
		}
		params.Start = uint32(*start)
		params.Stop = uint32(*stop)
		params.Catalog = cat

		g := demgen.NewGenerator(params)
		if err := g.Process(ctx); err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		stats := g.Stats()
		total += stats.Written
		fmt.Printf("%s: %d of %d segments gridded (%d skipped) in %.2f seconds\n",
			filepath.Base(input), stats.Written, stats.Segments, stats.Skipped, stats.Elapsed.Seconds())
	}

	logging.Info().
		Int("files", fs.NArg()).
		Int("tiles", total).
		Str("output", cfg.Processing.OutputDir).
		Dur("elapsed", time.Since(startTime)).
		Msg("gridding completed")
	return nil
}
