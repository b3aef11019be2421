package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/config"
	"clipdex/internal/logging"
	"clipdex/internal/notifications"
	"clipdex/internal/scoring"
	"clipdex/internal/services"
)

// Searcher finds candidate clips for a word.
type Searcher interface {
	Search(ctx context.Context, word clip.Word) ([]clip.Candidate, error)
}

// Scorer judges candidates from their transcript snippets.
type Scorer interface {
	Score(ctx context.Context, word clip.Word, candidates []clip.Candidate) ([]clip.ScoredCandidate, error)
}

// Verifier runs surviving candidates through the audio gate.
type Verifier interface {
	Verify(ctx context.Context, word clip.Word, scored []clip.ScoredCandidate) ([]clip.VerifiedClip, error)
}

// Uploader ingests verified clips into the content store.
type Uploader interface {
	Upload(ctx context.Context, clips []clip.VerifiedClip) ([]clip.UploadResult, error)
}

// Pipeline drives the word list through the four stages in order. Words are
// processed sequentially; each stage consults its own caches and checkpoints,
// so interrupting the pipeline at any point is safe and a rerun resumes where
// it stopped.
type Pipeline struct {
	cfg      *config.Config
	store    *checkpoint.Store
	searcher Searcher
	scorer   Scorer
	verifier Verifier
	uploader Uploader
	notifier notifications.Service
	logger   *slog.Logger
}

// New assembles the pipeline from its stages.
func New(cfg *config.Config, store *checkpoint.Store, searcher Searcher, scorer Scorer, verifier Verifier, uploader Uploader, notifier notifications.Service, logger *slog.Logger) *Pipeline {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		searcher: searcher,
		scorer:   scorer,
		verifier: verifier,
		uploader: uploader,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Summary aggregates one run's outcomes for the ledger and the end-of-run
// report.
type Summary struct {
	RunID             string
	WordsTotal        int
	WordsProcessed    int
	CandidatesFound   int
	CandidatesPassing int
	ClipsVerified     int
	UploadsCreated    int
	UploadsExisted    int
	FailuresRecorded  int
	Duration          time.Duration
}

// Uploaded returns the clips durably ingested this run, whether the store
// created a new record or merged into an existing one.
func (s *Summary) Uploaded() int {
	return s.UploadsCreated + s.UploadsExisted
}

// Run processes every word and returns the run summary. Unit failures are
// recorded and skipped inside the stages; Run itself fails only on fatal
// configuration errors or cancellation.
func (p *Pipeline) Run(ctx context.Context, words []clip.Word) (*Summary, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)

	if err := p.store.StartRun(ctx, runID, len(words)); err != nil {
		return nil, err
	}
	start := time.Now()
	logger.Info("run started", logging.Int("words", len(words)))
	if err := p.notifier.NotifyRunStarted(ctx, len(words)); err != nil {
		logger.Warn("run-started notification failed", logging.Error(err))
	}

	summary := &Summary{RunID: runID, WordsTotal: len(words)}
	var runErr error
	for _, word := range words {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := p.processWord(ctx, word, summary); err != nil {
			runErr = err
			break
		}
		summary.WordsProcessed++
	}

	summary.FailuresRecorded = p.failuresThisRun(ctx, logger, runID)
	summary.Duration = time.Since(start)

	status := checkpoint.RunStatusCompleted
	if runErr != nil {
		status = checkpoint.RunStatusFailed
	}
	if err := p.store.FinishRun(ctx, runID, status, summary.Uploaded(), summary.FailuresRecorded); err != nil {
		logger.Error("failed to close run ledger", logging.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		logger.Error("run aborted", logging.Error(runErr))
		if err := p.notifier.NotifyRunFailed(ctx, runErr); err != nil {
			logger.Warn("run-failed notification failed", logging.Error(err))
		}
		return summary, runErr
	}

	logger.Info("run completed",
		logging.Int("words", summary.WordsProcessed),
		logging.Int("uploaded", summary.Uploaded()),
		logging.Int("failures", summary.FailuresRecorded),
		logging.Duration("duration", summary.Duration))
	if err := p.notifier.NotifyRunCompleted(ctx, summary.Uploaded(), summary.FailuresRecorded, summary.Duration); err != nil {
		logger.Warn("run-completed notification failed", logging.Error(err))
	}
	return summary, nil
}

// processWord narrows one word through search, scoring, verification, and
// upload. Every stage handles its own unit failures; an error here is fatal
// to the whole run.
func (p *Pipeline) processWord(ctx context.Context, word clip.Word, summary *Summary) error {
	ctx = services.WithWord(ctx, word.Text)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("processing word", logging.String("language", word.Language))

	candidates, err := p.searcher.Search(services.WithStage(ctx, "search"), word)
	if err != nil {
		return err
	}
	summary.CandidatesFound += len(candidates)
	if len(candidates) == 0 {
		logger.Info("no candidates found")
		return nil
	}

	scored, err := p.scorer.Score(services.WithStage(ctx, "score"), word, candidates)
	if err != nil {
		return err
	}
	passing := scoring.Passing(scored, p.cfg.Pipeline.CandidateThreshold)
	summary.CandidatesPassing += len(passing)
	if len(passing) == 0 {
		logger.Info("no candidates passed the snippet gate",
			logging.Int("candidates", len(candidates)))
		return nil
	}

	verified, err := p.verifier.Verify(services.WithStage(ctx, "verify"), word, passing)
	if err != nil {
		return err
	}
	summary.ClipsVerified += len(verified)
	if len(verified) == 0 {
		logger.Info("no clips passed the audio gate",
			logging.Int("candidates", len(passing)))
		return nil
	}

	if p.cfg.Pipeline.DownloadOnly {
		logger.Info("download-only run, keeping artifacts local",
			logging.Int("clips", len(verified)))
		return nil
	}

	results, err := p.uploader.Upload(services.WithStage(ctx, "upload"), verified)
	if err != nil {
		return err
	}
	for _, result := range results {
		switch result.Status {
		case clip.UploadCreated:
			summary.UploadsCreated++
		case clip.UploadExisted:
			summary.UploadsExisted++
		}
	}
	return nil
}

// failuresThisRun counts the failure records the stages wrote under this run
// ID. A counting problem costs accuracy in the summary, never the run.
func (p *Pipeline) failuresThisRun(ctx context.Context, logger *slog.Logger, runID string) int {
	failures, err := p.store.Failures(ctx, "", 0)
	if err != nil {
		logger.Warn("failure count unavailable", logging.Error(err))
		return 0
	}
	count := 0
	for _, failure := range failures {
		if failure.RunID == runID {
			count++
		}
	}
	return count
}
