package checkpoint

import (
	"context"
	"fmt"
)

// Stats summarizes the checkpoint database for reporting.
type Stats struct {
	CheckpointsByStage map[Stage]int
	FailuresByClass    map[string]int
	Mappings           int
	VideosMapped       int
	Runs               int
	LastRun            *Run
}

// Stats aggregates checkpoint, failure, mapping, and run counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)

	stats := Stats{CheckpointsByStage: make(map[Stage]int)}

	rows, err := s.db.QueryContext(ctx, "SELECT stage, COUNT(1) FROM checkpoints GROUP BY stage")
	if err != nil {
		return Stats{}, fmt.Errorf("count checkpoints: %w", err)
	}
	for rows.Next() {
		var (
			stage string
			count int
		)
		if err := rows.Scan(&stage, &count); err != nil {
			rows.Close()
			return Stats{}, fmt.Errorf("scan checkpoint count: %w", err)
		}
		stats.CheckpointsByStage[Stage(stage)] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Stats{}, fmt.Errorf("iterate checkpoint counts: %w", err)
	}
	rows.Close()

	if stats.FailuresByClass, err = s.FailureCountByClass(ctx); err != nil {
		return Stats{}, err
	}
	if stats.Mappings, stats.VideosMapped, err = s.MappingTotals(ctx); err != nil {
		return Stats{}, err
	}
	if stats.Runs, err = s.RunCount(ctx); err != nil {
		return Stats{}, err
	}
	if stats.LastRun, err = s.LastRun(ctx); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
