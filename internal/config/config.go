// Package config loads and validates the optional .siphon YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultHistorySize is the run-history cache capacity when unset.
const DefaultHistorySize = 16

// Config holds the parsed .siphon configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version       int               `yaml:"version"`
	RawTee        *bool             `yaml:"tee"`         // tee output live while capturing; default: true
	RawInheritEnv *bool             `yaml:"inherit_env"` // default: true
	RawHistory    int               `yaml:"history"`     // run-history cache entries
	Env           map[string]string `yaml:"env"`         // environment overrides for every run
	Workdir       string            `yaml:"workdir"`     // default working directory
}

// Tee reports whether CLI runs forward output live while capturing it.
// Defaults to true; tee: false in .siphon captures silently.
func (c *Config) Tee() bool {
	return c.RawTee == nil || *c.RawTee
}

// InheritEnv reports whether runs merge the parent environment (the
// default) or replace it with the configured overrides.
func (c *Config) InheritEnv() bool {
	return c.RawInheritEnv == nil || *c.RawInheritEnv
}

// HistorySize returns the configured history cache capacity or the default.
func (c *Config) HistorySize() int {
	if c.RawHistory > 0 {
		return c.RawHistory
	}
	return DefaultHistorySize
}

// LoadResult holds the parsed config and the directory it was found in.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .siphon; falls back to workdir
}

// Load reads the .siphon file found by walking upward from workdir.
// If no .siphon file exists, a default Config rooted at workdir is returned.
func Load(workdir string) (*LoadResult, error) {
	root, err := findRoot(workdir)
	if err != nil {
		// No .siphon found anywhere; use workdir with defaults.
		abs, absErr := filepath.Abs(workdir)
		if absErr != nil {
			abs = workdir
		}
		return &LoadResult{Config: &Config{}, Root: abs}, nil
	}

	data, err := os.ReadFile(filepath.Join(root, ".siphon"))
	if err != nil {
		return nil, fmt.Errorf("reading .siphon: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing .siphon: %w", err)
	}
	return &LoadResult{Config: cfg, Root: root}, nil
}

// findRoot walks upward from dir looking for a directory containing .siphon.
func findRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".siphon")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf(".siphon not found")
		}
		dir = parent
	}
}
