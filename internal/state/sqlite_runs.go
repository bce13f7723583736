package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const runColumns = `r.id, r.document, r.rules_path, r.catalog_path, r.status, r.digest, r.started_at, r.completed_at, r.error,
	(SELECT COUNT(*) FROM decisions d WHERE d.run_id = r.id),
	(SELECT COUNT(*) FROM messages m WHERE m.run_id = r.id)`

// CreateRun records the start of a resolution run.
func (s *SQLiteStore) CreateRun(ctx context.Context, p RunParams) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &Run{
		ID:          generateID(),
		Document:    p.Document,
		RulesPath:   p.RulesPath,
		CatalogPath: p.CatalogPath,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("rules", p.RulesPath))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, document, rules_path, catalog_path, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Document, run.RulesPath, run.CatalogPath, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run finished with the given status and decision digest.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status RunStatus, digest, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, digest = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), nullString(digest), formatTime(time.Now()), nullString(errMsg), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRunFor returns the most recent completed run over the same inputs, or nil
// when there is none.
func (s *SQLiteStore) LatestRunFor(ctx context.Context, rulesPath, catalogPath string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs r
		WHERE r.rules_path = ? AND r.catalog_path = ? AND r.status = ?
		ORDER BY r.started_at DESC, r.rowid DESC LIMIT 1`,
		rulesPath, catalogPath, string(RunStatusCompleted),
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                      Run
		status, startedAt        string
		digest, completedAt, msg sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Document, &run.RulesPath, &run.CatalogPath, &status, &digest,
		&startedAt, &completedAt, &msg, &run.Decisions, &run.Messages); err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	run.Digest = digest.String
	run.Error = msg.String

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at %q: %w", completedAt.String, err)
		}
		run.CompletedAt = &t
	}
	return &run, nil
}

// nullString returns a sql.NullString for optional string fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
