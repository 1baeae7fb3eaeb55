package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Grid.Resolution != 1.0 {
		t.Errorf("Expected resolution 1.0, got %v", cfg.Grid.Resolution)
	}
	if cfg.Grid.GapFilter.Algorithm != "maximum_filter" || cfg.Grid.GapFilter.Size != 3 {
		t.Errorf("Unexpected gap filter defaults: %+v", cfg.Grid.GapFilter)
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name       string
		resolution float64
		segment    int
	}{
		{"sea_ice_low", 0.25, 60},
		{"sea_ice_high", 0.5, 60},
		{"mosaic_standard", 0.5, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromPreset(tt.name)
			if err != nil {
				t.Fatalf("FromPreset(%q) failed: %v", tt.name, err)
			}
			if cfg.Grid.Resolution != tt.resolution {
				t.Errorf("Expected resolution %v, got %v", tt.resolution, cfg.Grid.Resolution)
			}
			if cfg.Grid.SegmentLenSecs != tt.segment {
				t.Errorf("Expected segment length %d, got %d", tt.segment, cfg.Grid.SegmentLenSecs)
			}
		})
	}
}

func TestUnknownPreset(t *testing.T) {
	_, err := FromPreset("glacier_ultra")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("Expected ErrUnknownPreset, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero resolution", func(c *Config) { c.Grid.Resolution = 0 }},
		{"pad ratio of one", func(c *Config) { c.Grid.PadRatio = 1 }},
		{"bad boundary mode", func(c *Config) { c.Grid.GapFilter.Mode = "periodic" }},
		{"zero workers", func(c *Config) { c.Processing.NumWorkers = 0 }},
		{"unnamed filter", func(c *Config) { c.Filters = []FilterConfig{{Threshold: 1}} }},
		{"unknown export", func(c *Config) { c.Mosaic.Exports = []string{"geotiff"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Grid.Projection != "auto" {
		t.Errorf("Expected default projection, got %q", cfg.Grid.Projection)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "alsdem.yaml")

	cfg := DefaultConfig()
	cfg.Grid.Resolution = 0.5
	cfg.Grid.AlignHeading = true
	cfg.Mosaic.MaxDist2Ref = 2500
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Grid.Resolution != 0.5 || !loaded.Grid.AlignHeading {
		t.Errorf("Grid settings not preserved: %+v", loaded.Grid)
	}
	if loaded.Mosaic.MaxDist2Ref != 2500 {
		t.Errorf("Expected maxDist2Ref 2500, got %v", loaded.Mosaic.MaxDist2Ref)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("grid: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}
