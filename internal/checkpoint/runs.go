package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses recorded in the ledger.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one pipeline invocation recorded in the run ledger.
type Run struct {
	ID         string
	Status     string
	WordsTotal int
	Uploaded   int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// StartRun records a new pipeline invocation.
func (s *Store) StartRun(ctx context.Context, id string, wordsTotal int) error {
	_, err := s.execWithRetry(ctx,
		"INSERT INTO runs (id, status, words_total, started_at) VALUES (?, ?, ?, ?)",
		id, RunStatusRunning, wordsTotal, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("start run %s: %w", id, err)
	}
	return nil
}

// FinishRun closes out a run with its final status and counters.
func (s *Store) FinishRun(ctx context.Context, id, status string, uploaded, failed int) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE runs SET status = ?, uploaded = ?, failed = ?, finished_at = ? WHERE id = ?",
		status, uploaded, failed, timestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when the ledger is
// empty.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	ctx = ensureContext(ctx)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, words_total, uploaded, failed, started_at, COALESCE(finished_at, '')
		 FROM runs ORDER BY started_at DESC LIMIT 1`)

	var (
		run        Run
		startedAt  string
		finishedAt string
	)
	err := row.Scan(&run.ID, &run.Status, &run.WordsTotal, &run.Uploaded, &run.Failed, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	return &run, nil
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return count, nil
}
