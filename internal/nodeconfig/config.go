// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package nodeconfig loads the node's bootstrap configuration: a layered
// base file plus an optional region-specific override file under
// ./configuration/, falling back to process environment variables for
// any key neither file sets.
package nodeconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the Node Controller's bootstrap configuration.
type Config struct {
	DatabaseAuth string `yaml:"database_auth"`
	AccessKey    string `yaml:"access_key"`
	Region       string `yaml:"region"`
	Location     string `yaml:"location"`
	Country      string `yaml:"country"`
	Flag         string `yaml:"flag"`
}

const configDir = "./configuration"

// Load reads base.yaml from configDir, then — if region is non-empty and
// a "<region>.yaml" file exists — layers its fields over the base. Any
// field left empty after both files is filled from its environment
// variable. Load panics if a required field is still empty, or if
// neither a config file nor its environment fallback supplied it: a node
// that cannot resolve its own identity must not silently half-start.
func Load(region string) *Config {
	cfg := &Config{}

	if base, err := readFile(configDir + "/base.yaml"); err == nil {
		merge(cfg, base)
	}

	if region != "" {
		if override, err := readFile(fmt.Sprintf("%s/%s.yaml", configDir, region)); err == nil {
			merge(cfg, override)
		}
	}

	fillFromEnv(cfg)
	validate(cfg)

	return cfg
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func merge(dst, src *Config) {
	if src.DatabaseAuth != "" {
		dst.DatabaseAuth = src.DatabaseAuth
	}
	if src.AccessKey != "" {
		dst.AccessKey = src.AccessKey
	}
	if src.Region != "" {
		dst.Region = src.Region
	}
	if src.Location != "" {
		dst.Location = src.Location
	}
	if src.Country != "" {
		dst.Country = src.Country
	}
	if src.Flag != "" {
		dst.Flag = src.Flag
	}
}

func fillFromEnv(cfg *Config) {
	if cfg.DatabaseAuth == "" {
		cfg.DatabaseAuth = os.Getenv("database_auth")
	}
	if cfg.AccessKey == "" {
		cfg.AccessKey = os.Getenv("access_key")
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("region")
	}
	if cfg.Location == "" {
		cfg.Location = os.Getenv("location")
	}
	if cfg.Country == "" {
		cfg.Country = os.Getenv("country")
	}
	if cfg.Flag == "" {
		cfg.Flag = os.Getenv("flag")
	}
}

func validate(cfg *Config) {
	missing := []string{}
	if cfg.DatabaseAuth == "" {
		missing = append(missing, "database_auth")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if cfg.Region == "" {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		panic(fmt.Sprintf("nodeconfig: missing required configuration keys: %v", missing))
	}
}
