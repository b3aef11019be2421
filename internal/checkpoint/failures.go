package checkpoint

import (
	"context"
	"fmt"
	"time"

	"clipdex/internal/services"
)

// Failure is one audit record of a non-fatal unit failure. Records are
// append-only; a unit that fails on several runs appears once per run.
type Failure struct {
	ID        int64
	Stage     Stage
	Key       string
	Class     string
	Reason    string
	RunID     string
	CreatedAt time.Time
}

// RecordFailure appends a failure record for (stage, key). The run ID is
// taken from the context when present.
func (s *Store) RecordFailure(ctx context.Context, stage Stage, key, class, reason string) error {
	runID, _ := services.RunIDFromContext(ctx)
	_, err := s.execWithRetry(ctx,
		"INSERT INTO failures (stage, key, class, reason, run_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		string(stage), key, class, reason, runID, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("record failure (%s, %s): %w", stage, key, err)
	}
	return nil
}

// Failures returns failure records newest first, optionally filtered by
// class. An empty class returns all classes; limit <= 0 returns everything.
func (s *Store) Failures(ctx context.Context, class string, limit int) ([]Failure, error) {
	ctx = ensureContext(ctx)

	query := "SELECT id, stage, key, class, reason, run_id, created_at FROM failures"
	args := make([]any, 0, 2)
	if class != "" {
		query += " WHERE class = ?"
		args = append(args, class)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var (
			f         Failure
			stage     string
			createdAt string
		)
		if err := rows.Scan(&f.ID, &stage, &f.Key, &f.Class, &f.Reason, &f.RunID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan failure row: %w", err)
		}
		f.Stage = Stage(stage)
		f.CreatedAt = parseTimestamp(createdAt)
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}

// FailureCountByClass aggregates the failure log for reporting.
func (s *Store) FailureCountByClass(ctx context.Context) (map[string]int, error) {
	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx, "SELECT class, COUNT(1) FROM failures GROUP BY class")
	if err != nil {
		return nil, fmt.Errorf("count failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			class string
			count int
		)
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("scan failure count: %w", err)
		}
		counts[class] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failure counts: %w", err)
	}
	return counts, nil
}
