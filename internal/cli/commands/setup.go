package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ruler/internal/cli/config"
	"github.com/leapstack-labs/ruler/internal/cli/output"
	"github.com/leapstack-labs/ruler/internal/engine"
	"github.com/leapstack-labs/ruler/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the current configuration, or the defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.DefaultConfig()
}

// NewEngine creates an engine for the configured inputs. Runs are recorded only
// when record is set.
func (c *CommandContext) NewEngine(record bool) (*engine.Engine, error) {
	if err := c.Cfg.ValidateCatalog(); err != nil {
		return nil, err
	}
	engineCfg := engine.Config{
		RulesPath:   c.Cfg.RulesPath,
		CatalogPath: c.Cfg.CatalogPath,
		Logger:      c.Logger,
	}
	if record {
		if err := ensureStateDir(c.Cfg.StatePath); err != nil {
			return nil, err
		}
		engineCfg.StatePath = c.Cfg.StatePath
	}
	return engine.New(engineCfg)
}

// OpenStore opens the run history for reading. A missing history is an error
// rather than silently creating an empty one.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	if _, err := os.Stat(c.Cfg.StatePath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no run history at %s\nHint: Record a run with 'ruler resolve --record'", c.Cfg.StatePath)
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

func ensureStateDir(statePath string) error {
	if statePath == ":memory:" {
		return nil
	}
	stateDir := filepath.Dir(statePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return nil
}
