package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/ruler/pkg/core"
)

// RecordDecisions stores a run's decisions in emission order, atomically.
func (s *SQLiteStore) RecordDecisions(ctx context.Context, runID string, decisions []core.Decision) error {
	if s.db == nil {
		return errNotOpened
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, d := range decisions {
			payload, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("failed to encode decision %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO decisions (run_id, seq, kind, subject, payload) VALUES (?, ?, ?, ?, ?)`,
				runID, i, string(d.Kind), d.Subject(), string(payload),
			); err != nil {
				return fmt.Errorf("failed to insert decision %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("decisions recorded", slog.String("run", runID), slog.Int("count", len(decisions)))
	return nil
}

// GetDecisions returns a run's decisions in emission order. Numeric discriminator
// values are returned as json.Number.
func (s *SQLiteStore) GetDecisions(ctx context.Context, runID string) ([]core.Decision, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM decisions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Decision
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		// numbers stay json.Number so integer discriminator values keep their digits
		dec := json.NewDecoder(strings.NewReader(payload))
		dec.UseNumber()
		var d core.Decision
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordMessages stores a run's log stream in order, atomically.
func (s *SQLiteStore) RecordMessages(ctx context.Context, runID string, messages []core.Message) error {
	if s.db == nil {
		return errNotOpened
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, m := range messages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (run_id, seq, severity, kind, subject, text) VALUES (?, ?, ?, ?, ?, ?)`,
				runID, i, m.Severity.String(), string(m.Kind), m.Subject, m.Text,
			); err != nil {
				return fmt.Errorf("failed to insert message %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetMessages returns a run's log stream in order.
func (s *SQLiteStore) GetMessages(ctx context.Context, runID string) ([]core.Message, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, kind, subject, text FROM messages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Message
	for rows.Next() {
		var m core.Message
		var severity, kind string
		if err := rows.Scan(&severity, &kind, &m.Subject, &m.Text); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Severity, _ = core.ParseSeverity(severity)
		m.Kind = core.MessageKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}
