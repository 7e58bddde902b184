// Package config loads promptforge settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration. CLI flags override these values.
type Config struct {
	BundleDir  string `env:"PROMPTGEN_BUNDLE_DIR" envDefault:"bundles"`
	DBPath     string `env:"PROMPTGEN_DB" envDefault:"promptforge.db"`
	Seed       string `env:"PROMPTGEN_SEED"`
	LogLevel   string `env:"PROMPTGEN_LOG_LEVEL" envDefault:"info"`
	LogFile    string `env:"PROMPTGEN_LOG_FILE"`
	CycleLimit int    `env:"PROMPTGEN_CYCLE_LIMIT" envDefault:"5"`
	PassLimit  int    `env:"PROMPTGEN_PASS_LIMIT" envDefault:"10"`
}

// Load parses Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects limits the engine cannot work with.
func (c Config) Validate() error {
	if c.CycleLimit < 1 {
		return fmt.Errorf("PROMPTGEN_CYCLE_LIMIT must be at least 1, got %d", c.CycleLimit)
	}
	if c.PassLimit < 1 {
		return fmt.Errorf("PROMPTGEN_PASS_LIMIT must be at least 1, got %d", c.PassLimit)
	}
	return nil
}
