// Package config loads the flat key/value configuration file from spec.md
// §6: one "key = value" per line, "#" comments, recognized keys platform,
// workspace, typecheck, prunequery, ivm, answer.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved startup configuration for cmd/pgview.
type Config struct {
	// Platform selects the initial backend: "pg", "sd", "lb", or "n4"
	// (spec.md §6). Only "pg" (PostgreSQL) and "mem" (the in-memory
	// reference backend, not part of spec.md's own enum) are wired to a
	// real pkg/backend.Backend; the others are accepted here for
	// forward compatibility but rejected at connect time.
	Platform string `mapstructure:"platform"`

	// Workspace names the graph made current after startup.
	Workspace string `mapstructure:"workspace"`

	// Typecheck enables type-error reporting (default off).
	Typecheck bool `mapstructure:"typecheck"`

	// Prunequery enables pruning of provably-unsatisfiable branches
	// (default off).
	Prunequery bool `mapstructure:"prunequery"`

	// IVM enables incremental materialized-view maintenance (default
	// off; see DESIGN.md — not implemented, accepted only so a config
	// file written against the full spec still loads).
	IVM bool `mapstructure:"ivm"`

	// Answer controls whether a query reports result tuples, as opposed
	// to a bare count (default on).
	Answer bool `mapstructure:"answer"`
}

// Load reads path as a properties-format file (spec.md §6's "key = value"
// lines) and returns the resolved Config. An empty path yields all
// defaults: platform "mem", answer on, everything else off.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("properties")
	setDefaults(v)

	v.SetEnvPrefix("PGVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := v.ReadConfig(f); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform", "mem")
	v.SetDefault("workspace", "")
	v.SetDefault("typecheck", false)
	v.SetDefault("prunequery", false)
	v.SetDefault("ivm", false)
	v.SetDefault("answer", true)
}
