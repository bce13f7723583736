// Package state persists resolution runs in SQLite: one row per run plus the
// decisions and log messages the run produced. The decision digest of a completed
// run makes idempotence checks across runs a string comparison.
package state

import (
	"context"
	"time"

	"github.com/leapstack-labs/ruler/pkg/core"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one recorded resolution run.
type Run struct {
	ID          string     `json:"id"`
	Document    string     `json:"document,omitempty"`
	RulesPath   string     `json:"rules_path"`
	CatalogPath string     `json:"catalog_path"`
	Status      RunStatus  `json:"status"`
	Digest      string     `json:"digest,omitempty"`
	Decisions   int        `json:"decisions"`
	Messages    int        `json:"messages"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// RunParams describes a run about to start.
type RunParams struct {
	Document    string
	RulesPath   string
	CatalogPath string
}

// Store is the run history.
type Store interface {
	CreateRun(ctx context.Context, p RunParams) (*Run, error)
	RecordDecisions(ctx context.Context, runID string, decisions []core.Decision) error
	RecordMessages(ctx context.Context, runID string, messages []core.Message) error
	CompleteRun(ctx context.Context, runID string, status RunStatus, digest, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	LatestRunFor(ctx context.Context, rulesPath, catalogPath string) (*Run, error)
	GetDecisions(ctx context.Context, runID string) ([]core.Decision, error)
	GetMessages(ctx context.Context, runID string) ([]core.Message, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
