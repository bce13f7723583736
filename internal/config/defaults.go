package config

import "time"

// Default configuration values.
const (
	DefaultRulesFile    = "rules.yaml"
	DefaultCatalogFile  = "catalog.json"
	DefaultStateFile    = ".ruler/state.db"
	DefaultDebounce     = 300 * time.Millisecond
	DefaultHistoryLimit = 20
)

// ApplyDefaults fills unset values of a ProjectConfig.
func ApplyDefaults(c *ProjectConfig) {
	if c == nil {
		return
	}
	if c.RulesPath == "" {
		c.RulesPath = DefaultRulesFile
	}
	if c.CatalogPath == "" {
		c.CatalogPath = DefaultCatalogFile
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.Watch == nil {
		c.Watch = &WatchConfig{}
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.History == nil {
		c.History = &HistoryConfig{}
	}
	if c.History.Limit <= 0 {
		c.History.Limit = DefaultHistoryLimit
	}
}
