package search

import (
	"context"
	"log/slog"
	"path/filepath"

	"clipdex/internal/cache"
	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/config"
	"clipdex/internal/logging"
	"clipdex/internal/services"
	"clipdex/internal/services/clipsearch"
)

const cacheFileName = "search.json"

// Stage discovers candidate clips for vocabulary words. Results are cached
// per word so a rerun never repeats a search the service already answered.
type Stage struct {
	cfg      *config.Config
	store    *checkpoint.Store
	cache    *cache.Cache
	searcher clipsearch.Searcher
	logger   *slog.Logger
}

// New creates the search stage. The candidate cache lives in the configured
// cache directory.
func New(cfg *config.Config, store *checkpoint.Store, searcher clipsearch.Searcher, logger *slog.Logger) *Stage {
	stageLogger := logging.NewComponentLogger(logger, "search")
	return &Stage{
		cfg:      cfg,
		store:    store,
		cache:    cache.Open(filepath.Join(cfg.Paths.CacheDir, cacheFileName), stageLogger),
		searcher: searcher,
		logger:   stageLogger,
	}
}

// Search returns the candidate clips for word, from cache when possible. A
// non-fatal search failure is recorded against the word and yields an empty
// list so the rest of the run proceeds; only configuration errors propagate.
func (s *Stage) Search(ctx context.Context, word clip.Word) ([]clip.Candidate, error) {
	logger := logging.WithContext(ctx, s.logger)
	key := word.Key()

	var cached []clip.Candidate
	hit, err := s.cache.Get(key, &cached)
	if err != nil {
		logger.Warn("candidate cache entry unreadable, recomputing", logging.Error(err))
		hit = false
	}
	if hit {
		logger.Debug("candidate cache hit", logging.Int("candidates", len(cached)))
		if err := s.store.MarkDone(ctx, checkpoint.StageSearch, key); err != nil {
			return nil, err
		}
		return cached, nil
	}

	candidates, err := s.searcher.Search(ctx, clipsearch.Query{
		Text:               word.Text,
		Language:           word.Language,
		MinDurationSeconds: s.cfg.Pipeline.MinDurationSeconds,
		MaxDurationSeconds: s.cfg.Pipeline.MaxDurationSeconds,
		MaxResults:         s.cfg.Pipeline.MaxVideos,
	})
	if err != nil {
		if services.IsFatal(err) {
			return nil, err
		}
		logger.Warn("clip search failed, skipping word", logging.Error(err))
		if recordErr := s.store.RecordFailure(ctx, checkpoint.StageSearch, key, services.Class(err), err.Error()); recordErr != nil {
			return nil, recordErr
		}
		return nil, nil
	}

	// An empty result set is still an answer worth caching: the word is
	// marked done rather than re-searched every run.
	if err := s.cache.Put(key, candidates); err != nil {
		return nil, err
	}
	if err := s.store.MarkDone(ctx, checkpoint.StageSearch, key); err != nil {
		return nil, err
	}
	logger.Info("clip search completed", logging.Int("candidates", len(candidates)))
	return candidates, nil
}

// InvalidateWord drops the cached candidate list so a future run re-queries
// the service. Used when a candidate's download handle has expired: the
// cached handles are stale and only a fresh search can replace them.
func (s *Stage) InvalidateWord(word clip.Word) error {
	return s.cache.Remove(word.Key())
}
