// Package config provides the shared project configuration for ruler: where the
// rules, catalog snapshot and run history live, and how the watcher and history
// listing behave. It is decoupled from CLI concerns; internal/cli/config layers
// flags and environment variables on top.
package config

import "time"

// ProjectConfig holds the project-level settings read from ruler.yaml.
type ProjectConfig struct {
	// RulesPath is the rule document, in either the rule or the naming variant.
	RulesPath string `koanf:"rules_path"`
	// CatalogPath is the catalog snapshot to resolve against.
	CatalogPath string `koanf:"catalog_path"`
	// StatePath is the SQLite run history.
	StatePath string `koanf:"state_path"`
	// Record stores every resolve run in the history.
	Record bool `koanf:"record"`

	Watch   *WatchConfig   `koanf:"watch"`
	History *HistoryConfig `koanf:"history"`
}

// WatchConfig configures re-resolution on file changes.
type WatchConfig struct {
	// Debounce coalesces bursts of file events, e.g. editors writing via rename.
	Debounce time.Duration `koanf:"debounce"`
}

// HistoryConfig configures the history listing.
type HistoryConfig struct {
	Limit int `koanf:"limit"`
}
