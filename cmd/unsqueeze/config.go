// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the defaults that command-line flags override.
type Config struct {
	Verify       bool   `yaml:"verify"`
	Store        string `yaml:"store"`
	CacheEntries int    `yaml:"cacheEntries"`
	Verbose      bool   `yaml:"verbose"`
	Output       string `yaml:"output"`
}

func defaultConfig() Config {
	return Config{Verify: true, CacheEntries: 64}
}

// defaultConfigPath is $XDG_CONFIG_HOME/unsqueeze/config.yaml or the platform equivalent.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "unsqueeze", "config.yaml")
}

// readConfig reads the config file at path. A missing or empty file gives
// the defaults, but an unknown key is an error.
func readConfig(path string) (cfg Config, err error) {
	cfg = defaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.CacheEntries < 0 {
		return cfg, fmt.Errorf("config %s: negative cacheEntries", path)
	}
	return cfg, nil
}
