package scoring

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"clipdex/internal/cache"
	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/config"
	"clipdex/internal/logging"
	"clipdex/internal/services"
	"clipdex/internal/services/llm"
)

const cacheFileName = "scoring.json"

// Judge produces a relevance judgment for one word against one transcript.
// *llm.Client satisfies it; tests substitute stubs.
type Judge interface {
	JudgeRelevance(ctx context.Context, word, language, transcript string) (llm.Judgment, error)
}

// Stage scores candidates from their transcript snippets. Judgments are
// cached per (word, clip) pair so a rerun over the same candidates spends no
// LLM calls.
type Stage struct {
	cfg    *config.Config
	store  *checkpoint.Store
	cache  *cache.Cache
	judge  Judge
	logger *slog.Logger
}

// New creates the scoring stage. The judgment cache lives in the configured
// cache directory.
func New(cfg *config.Config, store *checkpoint.Store, judge Judge, logger *slog.Logger) *Stage {
	stageLogger := logging.NewComponentLogger(logger, "scoring")
	return &Stage{
		cfg:    cfg,
		store:  store,
		cache:  cache.Open(filepath.Join(cfg.Paths.CacheDir, cacheFileName), stageLogger),
		judge:  judge,
		logger: stageLogger,
	}
}

// Score judges every candidate and returns all judgments, rejections
// included; callers gate on Passing. A quality failure (unparseable
// judgment, no snippet to judge) is cached as a zero-score rejection so the
// candidate is never re-judged. A transient failure is not cached: the
// candidate is skipped this run and the word stays unmarked so a rerun
// retries it. Only configuration errors propagate.
func (s *Stage) Score(ctx context.Context, word clip.Word, candidates []clip.Candidate) ([]clip.ScoredCandidate, error) {
	logger := logging.WithContext(ctx, s.logger)

	scored := make([]clip.ScoredCandidate, 0, len(candidates))
	skipped := 0
	for _, candidate := range candidates {
		key := clip.UnitKey(word, candidate.NaturalKey())

		var entry clip.ScoredCandidate
		hit, err := s.cache.Get(key, &entry)
		if err != nil {
			logger.Warn("judgment cache entry unreadable, rejudging", logging.Error(err))
			hit = false
		}
		if hit {
			scored = append(scored, entry)
			continue
		}

		judgment, err := s.judge.JudgeRelevance(ctx, word.Text, word.Language, candidate.TranscriptSnippet)
		if err != nil {
			if services.IsFatal(err) {
				return nil, err
			}
			if errors.Is(err, services.ErrQuality) {
				// An unjudgeable candidate is an answer, not an outage:
				// cache the rejection so a rerun does not ask again.
				entry = clip.ScoredCandidate{Candidate: candidate, ParseFailed: true, Notes: err.Error()}
				if putErr := s.cache.Put(key, entry); putErr != nil {
					return nil, putErr
				}
				if recordErr := s.store.RecordFailure(ctx, checkpoint.StageScore, key, services.ClassQuality, err.Error()); recordErr != nil {
					return nil, recordErr
				}
				logger.Warn("candidate judgment rejected",
					logging.String(logging.FieldClipKey, candidate.NaturalKey()),
					logging.Error(err))
				scored = append(scored, entry)
				continue
			}
			skipped++
			logger.Warn("candidate judgment failed, skipping clip",
				logging.String(logging.FieldClipKey, candidate.NaturalKey()),
				logging.Error(err))
			if recordErr := s.store.RecordFailure(ctx, checkpoint.StageScore, key, services.Class(err), err.Error()); recordErr != nil {
				return nil, recordErr
			}
			continue
		}

		entry = clip.ScoredCandidate{
			Candidate:   candidate,
			Score:       judgment.RelevanceScore,
			WordPresent: judgment.WordPresent(word.Text),
			Notes:       judgment.ConfidenceNotes,
		}
		if err := s.cache.Put(key, entry); err != nil {
			return nil, err
		}
		logger.Debug("candidate judged",
			logging.String(logging.FieldClipKey, candidate.NaturalKey()),
			logging.Float64("score", entry.Score),
			logging.Bool("word_present", entry.WordPresent))
		scored = append(scored, entry)
	}

	// The word checkpoints only when every candidate holds a judgment.
	if skipped == 0 {
		if err := s.store.MarkDone(ctx, checkpoint.StageScore, word.Key()); err != nil {
			return nil, err
		}
	}
	logger.Info("candidate scoring completed",
		logging.Int("candidates", len(candidates)),
		logging.Int("scored", len(scored)),
		logging.Int("skipped", skipped))
	return scored, nil
}

// Passing filters to the candidates that survive the snippet gate: score at
// or above threshold, target word present, judgment parsed.
func Passing(scored []clip.ScoredCandidate, threshold float64) []clip.ScoredCandidate {
	passing := make([]clip.ScoredCandidate, 0, len(scored))
	for _, candidate := range scored {
		if candidate.Passes(threshold) {
			passing = append(passing, candidate)
		}
	}
	return passing
}
