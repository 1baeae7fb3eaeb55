package main

import (
	"flag"
	"fmt"
	"os"

	"alsdem/pkg/config"
	"alsdem/pkg/logging"
)

const usage = `alsdem grids airborne laser scanner point clouds and merges the tiles.

Usage:
  alsdem grid   [flags] file.l1b [file.l1b ...]
  alsdem mosaic [flags] [tile.nc ...]
  alsdem config [flags]

Run "alsdem <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "grid":
		err = runGrid(os.Args[2:])
	case "mosaic":
		err = runMosaic(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		logging.Error().Err(err).Str("command", os.Args[1]).Msg("failed")
		os.Exit(1)
	}
}

// commonFlags are shared by the processing commands
type commonFlags struct {
	configPath string
	preset     string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "alsdem.yaml", "Path to the YAML configuration file")
	fs.StringVar(&c.preset, "preset", "", "Named preset applied on top of the configuration")
	fs.StringVar(&c.logLevel, "log-level", "", "Override the configured log level")
}

// load reads the configuration, applies the preset and initializes logging
func (c *commonFlags) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.preset != "" {
		if err := cfg.ApplyPreset(c.preset); err != nil {
			return nil, err
		}
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	logging.Init(cfg.Logging)
	return cfg, nil
}
