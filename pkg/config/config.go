// Package config provides configuration loading and management for alsdem.
// It handles loading configuration from YAML files, named presets and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"alsdem/pkg/logging"
)

// ErrUnknownPreset is returned when a named preset does not exist
var ErrUnknownPreset = errors.New("unknown preset")

// FilterConfig selects one point cloud filter and its parameters
type FilterConfig struct {
	// Name of the filter, e.g. atmospheric_backscatter
	Name string `yaml:"name" validate:"required"`

	// Threshold is the filter specific detection threshold in meters
	Threshold float64 `yaml:"threshold" validate:"gte=0"`
}

// GapFilterConfig controls the morphological gap filling of gridded data
type GapFilterConfig struct {
	// Algorithm is either "maximum_filter" or "none"
	Algorithm string `yaml:"algorithm" validate:"required"`

	// Size of the filter window in grid cells
	Size int `yaml:"size" validate:"gte=1"`

	// Mode is the boundary mode of the filter window
	Mode string `yaml:"mode" validate:"oneof=nearest reflect mirror wrap constant"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Gridding parameters
	Grid struct {
		// Resolution of the grid in meters
		Resolution float64 `yaml:"resolution" validate:"gt=0"`

		// SegmentLenSecs is the length of one gridded segment in seconds
		SegmentLenSecs int `yaml:"segmentLenSecs" validate:"gt=0"`

		// PadRatio extends the grid beyond the data bounding box
		PadRatio float64 `yaml:"padRatio" validate:"gte=0,lt=1"`

		// Projection is "auto" for a stereographic projection centered on the
		// data or a fixed proj4 definition
		Projection string `yaml:"projection" validate:"required"`

		// Algorithm is the gridding method, "delaunay" or "linear"
		Algorithm string `yaml:"algorithm" validate:"required"`

		// AlignHeading rotates the projected points to the mean flight heading
		AlignHeading bool `yaml:"alignHeading"`

		// Variables limits the gridded fields. Empty grids every field.
		Variables []string `yaml:"variables"`

		// GapFilter settings
		GapFilter GapFilterConfig `yaml:"gapFilter"`
	} `yaml:"grid"`

	// Filters are applied to every segment before gridding, in order
	Filters []FilterConfig `yaml:"filters" validate:"dive"`

	// Mosaic parameters
	Mosaic struct {
		// Resolution of the merged grid in meters
		Resolution float64 `yaml:"resolution" validate:"gt=0"`

		// ReferenceFile is a CSV trajectory used for drift correction
		ReferenceFile string `yaml:"referenceFile"`

		// MaxDist2Ref excludes tiles further than this from the reference (meters, 0 disables)
		MaxDist2Ref float64 `yaml:"maxDist2Ref" validate:"gte=0"`

		// Exports lists the output formats: netcdf, ascii, png
		Exports []string `yaml:"exports" validate:"dive,oneof=netcdf ascii png"`
	} `yaml:"mosaic"`

	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many segments are gridded in parallel
		NumWorkers int `yaml:"numWorkers" validate:"gte=1"`

		// OutputDir receives the tiles, the catalog and the mosaic products
		OutputDir string `yaml:"outputDir" validate:"required"`

		// Catalog is the SQLite file that records every written tile
		Catalog string `yaml:"catalog"`

		// QuickLook writes a PNG preview next to each tile
		QuickLook bool `yaml:"quickLook"`
	} `yaml:"processing"`

	// Logging configuration
	Logging logging.Config `yaml:"logging"`
}

// preset holds the settings a named preset overrides
type preset struct {
	resolution     float64
	segmentLenSecs int
}

var presets = map[string]preset{
	"sea_ice_low":     {resolution: 0.25, segmentLenSecs: 60},
	"sea_ice_high":    {resolution: 0.5, segmentLenSecs: 60},
	"mosaic_standard": {resolution: 0.5, segmentLenSecs: 30},
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Grid.Resolution = 1.0
	cfg.Grid.SegmentLenSecs = 30
	cfg.Grid.PadRatio = 0.05
	cfg.Grid.Projection = "auto"
	cfg.Grid.Algorithm = "delaunay"
	cfg.Grid.AlignHeading = false
	cfg.Grid.GapFilter = GapFilterConfig{
		Algorithm: "maximum_filter",
		Size:      3,
		Mode:      "nearest",
	}

	cfg.Filters = []FilterConfig{
		{Name: "atmospheric_backscatter", Threshold: 5.0},
	}

	cfg.Mosaic.Resolution = 1.0
	cfg.Mosaic.Exports = []string{"netcdf"}

	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.OutputDir = "output"
	cfg.Processing.Catalog = "tiles.db"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}

// Presets returns the names of all known presets
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromPreset returns the default configuration with a named preset applied
func FromPreset(name string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.ApplyPreset(name); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyPreset overrides the grid resolution and segment length with a preset
func (c *Config) ApplyPreset(name string) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("%w: %q (available: %v)", ErrUnknownPreset, name, Presets())
	}
	c.Grid.Resolution = p.resolution
	c.Grid.SegmentLenSecs = p.segmentLenSecs
	c.Mosaic.Resolution = p.resolution
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration values
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed on %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
