// Package config provides configuration management for the ruler CLI.
//
// It extends the shared project configuration from internal/config with
// CLI-specific fields and layers defaults, ruler.yaml, RULER_ environment
// variables and command-line flags with koanf.
package config

import (
	sharedcfg "github.com/leapstack-labs/ruler/internal/config"
)

// WatchConfig is an alias for the shared watch configuration.
type WatchConfig = sharedcfg.WatchConfig

// HistoryConfig is an alias for the shared history configuration.
type HistoryConfig = sharedcfg.HistoryConfig

// Config holds all CLI configuration options.
type Config struct {
	RulesPath    string         `koanf:"rules_path"`
	CatalogPath  string         `koanf:"catalog_path"`
	StatePath    string         `koanf:"state_path"`
	Record       bool           `koanf:"record"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`
	Watch        *WatchConfig   `koanf:"watch"`
	History      *HistoryConfig `koanf:"history"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// Project returns the shared project view of the configuration.
func (c *Config) Project() *sharedcfg.ProjectConfig {
	return &sharedcfg.ProjectConfig{
		RulesPath:   c.RulesPath,
		CatalogPath: c.CatalogPath,
		StatePath:   c.StatePath,
		Record:      c.Record,
		Watch:       c.Watch,
		History:     c.History,
	}
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultRulesFile   = sharedcfg.DefaultRulesFile
	DefaultCatalogFile = sharedcfg.DefaultCatalogFile
	DefaultStateFile   = sharedcfg.DefaultStateFile
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// DefaultConfig returns the configuration used when nothing was loaded.
func DefaultConfig() *Config {
	p := &sharedcfg.ProjectConfig{}
	sharedcfg.ApplyDefaults(p)
	return &Config{
		RulesPath:    p.RulesPath,
		CatalogPath:  p.CatalogPath,
		StatePath:    p.StatePath,
		OutputFormat: DefaultOutput,
		Watch:        p.Watch,
		History:      p.History,
	}
}
