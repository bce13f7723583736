package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/leapstack-labs/ruler/internal/cli/output"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog_path is required")
	}
	if c.OutputFormat != "" && !slices.Contains(output.ValidModes(), c.OutputFormat) {
		return fmt.Errorf("invalid output format %q\nHint: Use one of %v", c.OutputFormat, output.ValidModes())
	}
	if c.Watch != nil && c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// ValidateCatalog checks that the catalog snapshot exists.
func (c *Config) ValidateCatalog() error {
	if _, err := os.Stat(c.CatalogPath); os.IsNotExist(err) {
		return fmt.Errorf("catalog snapshot does not exist: %s\nHint: Export the database catalog to JSON or YAML, or use --catalog to specify a different path", c.CatalogPath)
	}
	return nil
}
