package checkpoint

import (
	"context"
	"fmt"
	"time"

	"clipdex/internal/clip"
	"clipdex/internal/services"
)

// RecordMapping persists a word-video mapping and reports whether it was
// newly inserted. Re-recording an existing (natural_key, word, language)
// triple is a no-op, which keeps mapping counts stable across reruns.
func (s *Store) RecordMapping(ctx context.Context, m clip.Mapping, videoID string) (bool, error) {
	runID, _ := services.RunIDFromContext(ctx)
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO mappings
		 (natural_key, word, language, relevance_score, transcript_source, video_id, run_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.NaturalKey, m.Word, m.Language, m.RelevanceScore, string(m.TranscriptSource),
		videoID, runID, timestamp(time.Now()))
	if err != nil {
		return false, fmt.Errorf("record mapping (%s, %s): %w", m.NaturalKey, m.Word, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mapping rows affected: %w", err)
	}
	return inserted > 0, nil
}

// MappingCount returns how many word mappings the video identified by
// naturalKey has accumulated. The upload stage uses this to enforce the
// per-video mapping cap across runs.
func (s *Store) MappingCount(ctx context.Context, naturalKey string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM mappings WHERE natural_key = ?", naturalKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count mappings for %s: %w", naturalKey, err)
	}
	return count, nil
}

// MappingTotals returns the total mapping count and the number of distinct
// videos mapped.
func (s *Store) MappingTotals(ctx context.Context) (mappings, videos int, err error) {
	ctx = ensureContext(ctx)
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COUNT(DISTINCT natural_key) FROM mappings",
	).Scan(&mappings, &videos)
	if err != nil {
		return 0, 0, fmt.Errorf("count mappings: %w", err)
	}
	return mappings, videos, nil
}
