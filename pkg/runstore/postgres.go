package runstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
)

// Postgres stores runs in the orchestration_runs table.
type Postgres struct {
	DB *pgxpool.Pool
}

// NewPostgres connects to Postgres.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return &Postgres{DB: db}, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS orchestration_runs (
    run_id TEXT PRIMARY KEY,
    model TEXT NOT NULL,
    outcome TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    success BOOLEAN NOT NULL,
    response TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    step_count INT NOT NULL,
    tool_call_count INT NOT NULL,
    steps JSONB NOT NULL,
    tool_calls JSONB NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS orchestration_runs_started_idx ON orchestration_runs (started_at DESC);
`

// CreateSchema creates the runs table when missing.
func (p *Postgres) CreateSchema(ctx context.Context) error {
	if p == nil || p.DB == nil {
		return nil
	}
	_, err := p.DB.Exec(ctx, postgresSchema)
	return err
}

func insertArgs(r orchestrator.Result) ([]any, error) {
	steps, err := json.Marshal(r.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	calls, err := json.Marshal(r.ToolCalls)
	if err != nil {
		return nil, fmt.Errorf("encode tool calls: %w", err)
	}
	return []any{
		r.RunID, r.Model, string(r.Outcome), string(r.Reason), r.Success, r.Response, r.Error,
		r.StepCount(), len(r.ToolCalls), string(steps), string(calls), r.Started, r.Finished,
	}, nil
}

func (p *Postgres) Record(ctx context.Context, r orchestrator.Result) error {
	if p == nil || p.DB == nil {
		return nil
	}
	args, err := insertArgs(r)
	if err != nil {
		return err
	}
	_, err = p.DB.Exec(ctx, `
        INSERT INTO orchestration_runs
            (run_id, model, outcome, reason, success, response, error, step_count, tool_call_count, steps, tool_calls, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12, $13)
        ON CONFLICT (run_id) DO NOTHING
    `, args...)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit summaries, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if p == nil || p.DB == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.DB.Query(ctx, `
        SELECT run_id, model, outcome, reason, success, response, error, step_count, tool_call_count, started_at, finished_at
        FROM orchestration_runs
        ORDER BY started_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var outcome, reason string
		if err := rows.Scan(&s.RunID, &s.Model, &outcome, &reason, &s.Success, &s.Response, &s.Error, &s.Steps, &s.ToolCalls, &s.Started, &s.Finished); err != nil {
			return nil, err
		}
		s.Outcome = orchestrator.Outcome(outcome)
		s.Reason = orchestrator.ErrorKind(reason)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		p.DB.Close()
	}
}
