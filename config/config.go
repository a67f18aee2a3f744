package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the runtime settings for a marketplace node.
type Config struct {
	DataDir       string   `toml:"DataDir"`
	InMemory      bool     `toml:"InMemory"`
	Environment   string   `toml:"Environment"`
	PausedModules []string `toml:"PausedModules"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:     "./data",
		Environment: "dev",
	}
}

// Load reads the configuration from the given path, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if !c.InMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required for persistent storage")
	}
	return nil
}

// IsPaused implements the pause view consumed by native modules.
func (c *Config) IsPaused(module string) bool {
	if c == nil {
		return false
	}
	for _, paused := range c.PausedModules {
		if strings.EqualFold(strings.TrimSpace(paused), module) {
			return true
		}
	}
	return false
}
