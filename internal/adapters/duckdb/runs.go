package duckdb

import (
	"context"
	"fmt"

	"github.com/manthysbr/floral/internal/core/domain"
)

// SaveRun upserts a run history record.
func (r *Repository) SaveRun(ctx context.Context, run domain.RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, sequential, started_at, finished_at, outcome,
		                  succeeded, failed, not_run, total_tokens, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			finished_at  = excluded.finished_at,
			outcome      = excluded.outcome,
			succeeded    = excluded.succeeded,
			failed       = excluded.failed,
			not_run      = excluded.not_run,
			total_tokens = excluded.total_tokens,
			duration_ms  = excluded.duration_ms`,
		string(run.ID),
		string(run.Kind),
		run.Sequential,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		string(run.Outcome),
		run.Succeeded,
		run.Failed,
		run.NotRun,
		run.TotalTokens,
		run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs (newest first).
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, sequential, started_at, finished_at, outcome,
		       succeeded, failed, not_run, total_tokens, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []domain.RunRecord{}
	for rows.Next() {
		var run domain.RunRecord
		var id, kind, outcome string
		err := rows.Scan(
			&id, &kind, &run.Sequential, &run.StartedAt, &run.FinishedAt, &outcome,
			&run.Succeeded, &run.Failed, &run.NotRun, &run.TotalTokens, &run.DurationMs,
		)
		if err != nil {
			return nil, err
		}
		run.ID = domain.RunID(id)
		run.Kind = domain.RunKind(kind)
		run.Outcome = domain.RunOutcome(outcome)
		out = append(out, run)
	}
	return out, rows.Err()
}
