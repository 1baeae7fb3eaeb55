package main

import (
	"flag"
	"fmt"

	"alsdem/pkg/config"
)

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	create := fs.String("create", "", "Write the default configuration to this path")
	preset := fs.String("preset", "", "Apply a named preset to the written configuration")
	list := fs.Bool("list-presets", false, "List the named presets")
	fs.Parse(args)

	if *list {
		for _, name := range config.Presets() {
			fmt.Println(name)
		}
		return nil
	}
	if *create == "" {
		fs.Usage()
		return nil
	}

	cfg := config.DefaultConfig()
	if *preset != "" {
		var err error
		if cfg, err = config.FromPreset(*preset); err != nil {
			return err
		}
	}
	if err := config.SaveConfig(cfg, *create); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", *create)
	return nil
}
