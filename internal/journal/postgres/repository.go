// Package postgres persists the run journal in Postgres.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
)

//go:embed schema.sql
var schema string

// Repository implements journal.Writer and journal.Reader.
type Repository struct {
	pool *pgxpool.Pool
}

var (
	_ journal.Writer = (*Repository)(nil)
	_ journal.Reader = (*Repository)(nil)
)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the journal tables when they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// StartRun implements journal.Writer.
func (r *Repository) StartRun(ctx context.Context, run journal.Run) error {
	counts, err := encodeCounts(run.Counts)
	if err != nil {
		return err
	}
	const stmt = `INSERT INTO sync_runs (run_id, job, status, started_at, counts)
        VALUES ($1,$2,$3,$4,$5)`
	_, err = r.pool.Exec(ctx, stmt, run.ID, run.Job, string(run.Status), run.StartedAt, counts)
	return err
}

// Record implements journal.Writer.
func (r *Repository) Record(ctx context.Context, entry journal.Entry) error {
	const stmt = `INSERT INTO sync_outcomes (run_id, record_key, outcome, reason, ambiguous, row_id, recorded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, stmt,
		entry.RunID,
		entry.Key,
		string(entry.Outcome),
		nullIfEmpty(entry.Reason),
		entry.Ambiguous,
		nullIfEmpty(entry.RowID),
		entry.RecordedAt,
	)
	return err
}

// FinishRun implements journal.Writer.
func (r *Repository) FinishRun(ctx context.Context, run journal.Run) error {
	counts, err := encodeCounts(run.Counts)
	if err != nil {
		return err
	}
	const stmt = `UPDATE sync_runs SET status=$2, finished_at=$3, counts=$4, error=$5 WHERE run_id=$1`
	tag, err := r.pool.Exec(ctx, stmt, run.ID, string(run.Status), run.FinishedAt, counts, nullIfEmpty(run.Error))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", journal.ErrRunNotFound, run.ID)
	}
	return nil
}

const runColumns = `run_id::text, job, status, started_at, finished_at, counts, COALESCE(error, '')`

// ListRuns implements journal.Reader.
func (r *Repository) ListRuns(ctx context.Context, cursor *journal.Cursor, limit int) ([]journal.Run, *journal.Cursor, error) {
	args := []interface{}{limit}
	query := `SELECT ` + runColumns + ` FROM sync_runs`
	if cursor != nil {
		query += ` WHERE (started_at, run_id) < ($2, $3::uuid)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}
	query += ` ORDER BY started_at DESC, run_id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]journal.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *journal.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &journal.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, next, nil
}

// GetRun implements journal.Reader.
func (r *Repository) GetRun(ctx context.Context, id string) (*journal.Run, []journal.Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE run_id::text=$1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, journal.ErrRunNotFound
		}
		return nil, nil, err
	}

	const query = `SELECT record_key, outcome, COALESCE(reason, ''), ambiguous, COALESCE(row_id, ''), recorded_at
        FROM sync_outcomes WHERE run_id=$1::uuid ORDER BY id`
	rows, err := r.pool.Query(ctx, query, run.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		entry := journal.Entry{RunID: run.ID}
		var outcome string
		if err := rows.Scan(&entry.Key, &outcome, &entry.Reason, &entry.Ambiguous, &entry.RowID, &entry.RecordedAt); err != nil {
			return nil, nil, err
		}
		entry.Outcome = journal.Outcome(outcome)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &run, entries, nil
}

func scanRun(row pgx.Row) (journal.Run, error) {
	var (
		run        journal.Run
		status     string
		finishedAt *time.Time
		counts     []byte
	)
	if err := row.Scan(&run.ID, &run.Job, &status, &run.StartedAt, &finishedAt, &counts, &run.Error); err != nil {
		return journal.Run{}, err
	}
	run.Status = journal.Status(status)
	if finishedAt != nil {
		run.FinishedAt = *finishedAt
	}
	run.Counts = make(map[journal.Outcome]int)
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &run.Counts); err != nil {
			return journal.Run{}, fmt.Errorf("decode counts for run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

func encodeCounts(counts map[journal.Outcome]int) ([]byte, error) {
	if counts == nil {
		counts = map[journal.Outcome]int{}
	}
	body, err := json.Marshal(counts)
	if err != nil {
		return nil, fmt.Errorf("encode counts: %w", err)
	}
	return body, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
