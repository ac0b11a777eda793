package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/position-analyzer/internal/stats"
)

// RunRecord is one finished batch.
type RunRecord struct {
	RunID      string
	InputPath  string
	OutputPath string
	EnginePath string
	Depth      int
	Workers    int
	Stats      stats.Snapshot
	Failure    string
	StartedAt  time.Time
	FinishedAt time.Time
}

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(ctx context.Context, databaseURL string) (*PostgresLedger, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	l := &PostgresLedger{db: db}
	if err := l.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS analyzer_runs (
	run_id          TEXT PRIMARY KEY,
	input_path      TEXT NOT NULL,
	output_path     TEXT NOT NULL,
	engine_path     TEXT NOT NULL,
	depth           INTEGER NOT NULL,
	workers         INTEGER NOT NULL,
	total           BIGINT NOT NULL,
	processed       BIGINT NOT NULL,
	written         BIGINT NOT NULL,
	errors          BIGINT NOT NULL,
	errors_by_reason JSONB NOT NULL,
	failure         TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
)`

func (l *PostgresLedger) ensureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure analyzer_runs: %w", err)
	}
	return nil
}

const insertRunSQL = `INSERT INTO analyzer_runs (
		run_id, input_path, output_path, engine_path, depth, workers,
		total, processed, written, errors, errors_by_reason, failure,
		started_at, finished_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (run_id) DO UPDATE SET
		processed=EXCLUDED.processed,
		written=EXCLUDED.written,
		errors=EXCLUDED.errors,
		errors_by_reason=EXCLUDED.errors_by_reason,
		failure=EXCLUDED.failure,
		finished_at=EXCLUDED.finished_at`

// SaveRun upserts rec keyed by run id.
func (l *PostgresLedger) SaveRun(ctx context.Context, rec RunRecord) error {
	if l == nil || l.db == nil {
		return nil
	}
	args, err := runArgs(rec)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, insertRunSQL, args...); err != nil {
		return fmt.Errorf("insert analyzer run: %w", err)
	}
	return nil
}

func runArgs(rec RunRecord) ([]any, error) {
	byReason, err := json.Marshal(rec.Stats.ByReason)
	if err != nil {
		return nil, err
	}
	return []any{
		rec.RunID, rec.InputPath, rec.OutputPath, rec.EnginePath, rec.Depth, rec.Workers,
		rec.Stats.Total, rec.Stats.Processed, rec.Stats.Written, rec.Stats.Errors, string(byReason), rec.Failure,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	}, nil
}

func (l *PostgresLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
