// Package engine hosts the resolver: it loads a rule document and a catalog
// snapshot, drives the resolver hooks over the catalog, applies the decisions to
// an object model and optionally records the run in the history store.
package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/leapstack-labs/ruler/internal/loader"
	"github.com/leapstack-labs/ruler/internal/state"
	"github.com/leapstack-labs/ruler/pkg/core"
)

// Engine runs resolutions for one rules file and one catalog snapshot.
type Engine struct {
	logger *slog.Logger
	store  state.Store

	rulesPath   string
	catalogPath string
}

// Config holds engine configuration.
type Config struct {
	// RulesPath is the rule document (either variant). A missing file resolves
	// with the include-everything default document.
	RulesPath string
	// CatalogPath is the catalog snapshot to resolve against.
	CatalogPath string
	// StatePath is the SQLite history database (optional, no history when empty)
	StatePath string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The history store is opened when StatePath is set.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.CatalogPath == "" {
		return nil, errors.New("catalog path is required")
	}

	logger.Debug("initializing engine", "rules", cfg.RulesPath, "catalog", cfg.CatalogPath, "state", cfg.StatePath)

	e := &Engine{logger: logger, rulesPath: cfg.RulesPath, catalogPath: cfg.CatalogPath}
	if cfg.StatePath != "" {
		store := state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		e.store = store
	}
	return e, nil
}

// NewWithStore creates an engine recording into an already opened store.
func NewWithStore(cfg Config, store state.Store) (*Engine, error) {
	cfg.StatePath = ""
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	e.store = store
	return e, nil
}

// Close releases the history store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			return fmt.Errorf("failed to close state store: %w", err)
		}
	}
	return nil
}

// Store returns the history store, or nil when runs are not recorded.
func (e *Engine) Store() state.Store { return e.store }

// RulesPath returns the rules file the engine resolves with.
func (e *Engine) RulesPath() string { return e.rulesPath }

// loadDocument loads the rule document, falling back to the default document when
// no rules path is configured or the file does not exist.
func (e *Engine) loadDocument() (*core.RuleDocument, error) {
	if e.rulesPath == "" {
		return core.DefaultRuleDocument(), nil
	}
	if _, err := os.Stat(e.rulesPath); errors.Is(err, fs.ErrNotExist) {
		e.logger.Info("no rules file, including everything", "path", e.rulesPath)
		return core.DefaultRuleDocument(), nil
	}
	doc, err := loader.LoadRuleDocument(e.rulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return doc, nil
}

// WriteBack saves the rule document of a result, including the rules synthesized
// during its run, to the engine's rules path.
func (e *Engine) WriteBack(res *Result) error {
	if e.rulesPath == "" {
		return errors.New("no rules path to write back to")
	}
	if err := loader.SaveRules(e.rulesPath, res.Document); err != nil {
		return fmt.Errorf("failed to write back rules: %w", err)
	}
	e.logger.Info("rules written back", "path", e.rulesPath, "synthesized", res.Synthesized)
	return nil
}
