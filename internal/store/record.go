package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sqlang/sqtest/internal/harness"
)

// Run is one recorded suite execution.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Policy    string    `json:"policy"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Total     int       `json:"total"`
	Pass      bool      `json:"pass"`
}

// CaseRow is one recorded case verdict within a run.
type CaseRow struct {
	RunID      string `json:"run_id"`
	Seq        int    `json:"seq"`
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Verdict    string `json:"verdict"`
	Kind       string `json:"kind,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// RecordSuite writes one suite result and all its case verdicts in a
// single transaction and returns the generated run ID.
func (s *Store) RecordSuite(ctx context.Context, startedAt time.Time, policy string, suite *harness.SuiteResult) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record suite: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, policy, passed, failed, total, pass)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		startedAt.UTC().Format(time.RFC3339Nano),
		policy,
		suite.Passed,
		suite.Failed,
		suite.Total,
		suite.Pass(),
	)
	if err != nil {
		return "", fmt.Errorf("record suite: %w", err)
	}

	for i, cr := range suite.Cases {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO case_results (run_id, seq, name, stage, verdict, kind, diagnostic)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			id, i, cr.Name, string(cr.Stage), string(cr.Verdict), string(cr.Kind), cr.Diagnostic,
		)
		if err != nil {
			return "", fmt.Errorf("record case %s: %w", cr.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record suite: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, policy, passed, failed, total, pass
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		if err := rows.Scan(&r.ID, &startedAt, &r.Policy, &r.Passed, &r.Failed, &r.Total, &r.Pass); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("list runs: bad timestamp %q: %w", startedAt, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CaseResults returns the per-case rows of one run in corpus order.
func (s *Store) CaseResults(ctx context.Context, runID string) ([]CaseRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, name, stage, verdict, kind, diagnostic
		FROM case_results
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("case results: %w", err)
	}
	defer rows.Close()

	var out []CaseRow
	for rows.Next() {
		var c CaseRow
		if err := rows.Scan(&c.RunID, &c.Seq, &c.Name, &c.Stage, &c.Verdict, &c.Kind, &c.Diagnostic); err != nil {
			return nil, fmt.Errorf("case results: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
