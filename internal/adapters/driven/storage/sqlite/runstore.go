package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/geih-labs/firewatch/internal/core/domain"
	"github.com/geih-labs/firewatch/internal/core/ports/driven"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id             TEXT PRIMARY KEY,
	source_name    TEXT NOT NULL,
	window_start   TEXT NOT NULL,
	window_end     TEXT NOT NULL,
	current_stage  TEXT NOT NULL,
	attempts       TEXT NOT NULL,
	status         TEXT NOT NULL,
	records_loaded INTEGER NOT NULL DEFAULT 0,
	warnings       TEXT,
	started_at     TEXT,
	finished_at    TEXT,
	last_error     TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_source_window
	ON pipeline_runs(source_name, window_start, created_at);
CREATE INDEX IF NOT EXISTS idx_runs_status
	ON pipeline_runs(status);
`

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is a SQLite-backed implementation of driven.RunStore.
type RunStore struct {
	db   *sql.DB
	path string
}

// NewRunStore opens (or creates) the run database under dataDir.
// If dataDir is empty, defaults to ~/.firewatch/data.
func NewRunStore(dataDir string) (*RunStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".firewatch", "data")
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "runs.db")

	// WAL mode for concurrent status queries while runs are writing.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &RunStore{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.path
}

// Save creates or updates a run by ID.
func (s *RunStore) Save(ctx context.Context, run *domain.PipelineRun) error {
	if run == nil {
		return fmt.Errorf("saving run: nil run")
	}

	attempts, err := json.Marshal(run.Attempts)
	if err != nil {
		return fmt.Errorf("encoding attempts: %w", err)
	}
	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("encoding warnings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs
			(id, source_name, window_start, window_end, current_stage, attempts,
			 status, records_loaded, warnings, started_at, finished_at, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_stage  = excluded.current_stage,
			attempts       = excluded.attempts,
			status         = excluded.status,
			records_loaded = excluded.records_loaded,
			warnings       = excluded.warnings,
			started_at     = excluded.started_at,
			finished_at    = excluded.finished_at,
			last_error     = excluded.last_error
	`, run.ID, run.SourceName,
		run.Window.Start.UTC().Format(time.RFC3339), run.Window.End.UTC().Format(time.RFC3339),
		string(run.CurrentStage), string(attempts),
		string(run.Status), run.RecordsLoaded, string(warnings),
		formatNullableTime(run.StartedAt), formatNullableTime(run.FinishedAt),
		nullString(run.LastError), time.Now().UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

const selectColumns = `
	id, source_name, window_start, window_end, current_stage, attempts,
	status, records_loaded, warnings, started_at, finished_at, last_error`

// Get returns the most recently created run for a source and window start.
func (s *RunStore) Get(ctx context.Context, sourceName string, windowStart time.Time) (*domain.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+selectColumns+`
		FROM pipeline_runs
		WHERE source_name = ? AND window_start = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, sourceName, windowStart.UTC().Format(time.RFC3339))

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// List returns runs, most recent window first, optionally filtered by
// source and status.
func (s *RunStore) List(ctx context.Context, sourceName string, status domain.RunStatus) ([]domain.PipelineRun, error) {
	query := `SELECT` + selectColumns + ` FROM pipeline_runs WHERE 1=1`
	args := []any{}
	if sourceName != "" {
		query += " AND source_name = ?"
		args = append(args, sourceName)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY window_start DESC, created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*domain.PipelineRun, error) {
	var (
		run                    domain.PipelineRun
		windowStart, windowEnd string
		stage, status          string
		attempts, warnings     sql.NullString
		startedAt, finishedAt  sql.NullString
		lastError              sql.NullString
	)

	if err := sc.Scan(&run.ID, &run.SourceName, &windowStart, &windowEnd,
		&stage, &attempts, &status, &run.RecordsLoaded, &warnings,
		&startedAt, &finishedAt, &lastError); err != nil {
		return nil, err
	}

	var err error
	if run.Window.Start, err = time.Parse(time.RFC3339, windowStart); err != nil {
		return nil, fmt.Errorf("parsing window start: %w", err)
	}
	if run.Window.End, err = time.Parse(time.RFC3339, windowEnd); err != nil {
		return nil, fmt.Errorf("parsing window end: %w", err)
	}

	run.CurrentStage = domain.Stage(stage)
	run.Status = domain.RunStatus(status)
	run.LastError = lastError.String

	run.Attempts = make(map[domain.Stage]int)
	if attempts.Valid && attempts.String != "" {
		if err := json.Unmarshal([]byte(attempts.String), &run.Attempts); err != nil {
			return nil, fmt.Errorf("decoding attempts: %w", err)
		}
	}
	if warnings.Valid && warnings.String != "" && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
			return nil, fmt.Errorf("decoding warnings: %w", err)
		}
	}

	run.StartedAt = parseNullableTime(startedAt)
	run.FinishedAt = parseNullableTime(finishedAt)
	return &run, nil
}

func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
