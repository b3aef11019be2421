package checkpoint

import (
	"context"
	"fmt"
	"time"

	"clipdex/internal/services"
)

// Stage identifies one pipeline stage for checkpoint scoping.
type Stage string

// Stage names used as checkpoint scopes.
const (
	StageSearch Stage = "search"
	StageScore  Stage = "score"
	StageVerify Stage = "verify"
	StageUpload Stage = "upload"
)

// IsDone reports whether the unit identified by (stage, key) completed in
// this or an earlier run.
func (s *Store) IsDone(ctx context.Context, stage Stage, key string) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM checkpoints WHERE stage = ? AND key = ?",
		string(stage), key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query checkpoint (%s, %s): %w", stage, key, err)
	}
	return count > 0, nil
}

// MarkDone writes the durable completion marker for (stage, key). Marking an
// already-marked unit is a no-op; presence is sufficient.
func (s *Store) MarkDone(ctx context.Context, stage Stage, key string) error {
	runID, _ := services.RunIDFromContext(ctx)
	_, err := s.execWithRetry(ctx,
		"INSERT OR IGNORE INTO checkpoints (stage, key, run_id, created_at) VALUES (?, ?, ?, ?)",
		string(stage), key, runID, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("mark checkpoint (%s, %s): %w", stage, key, err)
	}
	return nil
}

// DoneCount returns how many units have completed for the stage.
func (s *Store) DoneCount(ctx context.Context, stage Stage) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM checkpoints WHERE stage = ?", string(stage),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count checkpoints for %s: %w", stage, err)
	}
	return count, nil
}
