package main

import (
	"testing"

	"github.com/deixis/siphon/internal/config"
)

func TestTeeEnabled(t *testing.T) {
	off := false
	on := true

	tests := []struct {
		name    string
		cfg     *config.Config
		quiet   bool
		jsonOut bool
		want    bool
	}{
		{"default config tees", &config.Config{}, false, false, true},
		{"config tee false disables", &config.Config{RawTee: &off}, false, false, false},
		{"config tee true explicit", &config.Config{RawTee: &on}, false, false, true},
		{"quiet overrides config", &config.Config{RawTee: &on}, true, false, false},
		{"json keeps stdout clean", &config.Config{RawTee: &on}, false, true, false},
	}
	for _, tt := range tests {
		if got := teeEnabled(tt.cfg, tt.quiet, tt.jsonOut); got != tt.want {
			t.Errorf("%s: teeEnabled = %v, want %v", tt.name, got, tt.want)
		}
	}
}
