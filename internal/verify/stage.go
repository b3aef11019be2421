package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"clipdex/internal/cache"
	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/config"
	"clipdex/internal/logging"
	"clipdex/internal/media"
	"clipdex/internal/ratelimit"
	"clipdex/internal/services"
	"clipdex/internal/services/llm"
	"clipdex/internal/services/transcribe"
)

const (
	judgmentCacheFileName = "verify.json"
	artifactDirName       = "verify"
)

// Judge produces a relevance judgment for one word against one transcript.
// *llm.Client satisfies it.
type Judge interface {
	JudgeRelevance(ctx context.Context, word, language, transcript string) (llm.Judgment, error)
}

// CacheInvalidator drops a word's cached search results. The search stage
// satisfies it; invalidating is how an expired download handle turns into a
// fresh search on the next run.
type CacheInvalidator interface {
	InvalidateWord(word clip.Word) error
}

// Stage is the authoritative quality gate: it downloads each surviving
// candidate, extracts audio, transcribes it, and re-judges the word against
// the real transcript. Media, audio, and transcript artifacts are cached per
// clip; the final judgment is cached per (word, clip) pair.
type Stage struct {
	cfg         *config.Config
	store       *checkpoint.Store
	judgments   *cache.Cache
	retrier     *ratelimit.Client
	transcriber transcribe.Transcriber
	judge       Judge
	invalidator CacheInvalidator
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option adjusts Stage construction.
type Option func(*Stage)

// WithHTTPClient overrides the HTTP client used for media downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Stage) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// New creates the verification stage.
func New(cfg *config.Config, store *checkpoint.Store, retrier *ratelimit.Client, transcriber transcribe.Transcriber, judge Judge, invalidator CacheInvalidator, logger *slog.Logger, opts ...Option) *Stage {
	stageLogger := logging.NewComponentLogger(logger, "verify")
	stage := &Stage{
		cfg:         cfg,
		store:       store,
		judgments:   cache.Open(filepath.Join(cfg.Paths.CacheDir, judgmentCacheFileName), stageLogger),
		retrier:     retrier,
		transcriber: transcriber,
		judge:       judge,
		invalidator: invalidator,
		httpClient:  &http.Client{},
		logger:      stageLogger,
	}
	for _, opt := range opts {
		opt(stage)
	}
	return stage
}

// verdict is the cached word-specific outcome of the audio judgment. The
// artifacts it was judged from are word-independent and live on disk.
type verdict struct {
	FinalScore  float64 `json:"final_score"`
	WordPresent bool    `json:"word_present"`
	ParseFailed bool    `json:"parse_failed,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

func (v verdict) passes(threshold float64) bool {
	return !v.ParseFailed && v.WordPresent && v.FinalScore >= threshold
}

// Verify runs each scored candidate through the audio gate and returns only
// the clips that pass. A rejected clip is a completed unit; a failed one
// (download, extraction, transcription) is recorded and skipped so a later
// run can retry it. Only configuration errors propagate.
func (s *Stage) Verify(ctx context.Context, word clip.Word, scored []clip.ScoredCandidate) ([]clip.VerifiedClip, error) {
	logger := logging.WithContext(ctx, s.logger)

	verified := make([]clip.VerifiedClip, 0, len(scored))
	for _, candidate := range scored {
		result, err := s.verifyOne(ctx, logger, word, candidate)
		if err != nil {
			if services.IsFatal(err) {
				return nil, err
			}
			logger.Warn("clip verification failed, skipping clip",
				logging.String(logging.FieldClipKey, candidate.NaturalKey()),
				logging.Error(err))
			unitKey := clip.UnitKey(word, candidate.NaturalKey())
			if recordErr := s.store.RecordFailure(ctx, checkpoint.StageVerify, unitKey, services.Class(err), err.Error()); recordErr != nil {
				return nil, recordErr
			}
			continue
		}
		if result != nil {
			verified = append(verified, *result)
		}
	}

	logger.Info("verification completed",
		logging.Int("candidates", len(scored)),
		logging.Int("verified", len(verified)))
	return verified, nil
}

// verifyOne takes one candidate through download, extraction, transcription,
// and the audio judgment. It returns nil without error when the clip was
// judged and rejected.
func (s *Stage) verifyOne(ctx context.Context, logger *slog.Logger, word clip.Word, candidate clip.ScoredCandidate) (*clip.VerifiedClip, error) {
	unitKey := clip.UnitKey(word, candidate.NaturalKey())

	var cached verdict
	hit, err := s.judgments.Get(unitKey, &cached)
	if err != nil {
		logger.Warn("judgment cache entry unreadable, rejudging", logging.Error(err))
		hit = false
	}
	if hit && !cached.passes(s.cfg.Pipeline.VerificationThreshold) {
		// The rejection was recorded when first judged; reruns skip quietly.
		if err := s.store.MarkDone(ctx, checkpoint.StageVerify, unitKey); err != nil {
			return nil, err
		}
		return nil, nil
	}

	arts, err := s.ensureArtifacts(ctx, logger, word, candidate)
	if err != nil {
		return nil, err
	}

	if !hit {
		cached, err = s.judgeTranscript(ctx, word, arts.transcript.Text)
		if err != nil {
			return nil, err
		}
		if err := s.judgments.Put(unitKey, cached); err != nil {
			return nil, err
		}
		if !cached.passes(s.cfg.Pipeline.VerificationThreshold) {
			reason := rejectionReason(cached, s.cfg.Pipeline.VerificationThreshold)
			logger.Info("clip rejected by audio judgment",
				logging.String(logging.FieldClipKey, candidate.NaturalKey()),
				logging.Float64("final_score", cached.FinalScore),
				logging.String("reason", reason))
			if err := s.store.RecordFailure(ctx, checkpoint.StageVerify, unitKey, services.ClassQuality, reason); err != nil {
				return nil, err
			}
			if err := s.store.MarkDone(ctx, checkpoint.StageVerify, unitKey); err != nil {
				return nil, err
			}
			return nil, nil
		}
		logger.Info("clip passed audio judgment",
			logging.String(logging.FieldClipKey, candidate.NaturalKey()),
			logging.Float64("final_score", cached.FinalScore))
	}

	if err := s.store.MarkDone(ctx, checkpoint.StageVerify, unitKey); err != nil {
		return nil, err
	}
	return &clip.VerifiedClip{
		ScoredCandidate: candidate,
		Word:            word,
		MediaPath:       arts.mediaPath,
		Format:          arts.format,
		SizeBytes:       arts.sizeBytes,
		AudioTranscript: arts.transcript.Text,
		Words:           arts.transcript.Words,
		FinalScore:      cached.FinalScore,
	}, nil
}

// artifacts are the word-independent products of verifying one clip.
type artifacts struct {
	mediaPath  string
	format     string
	sizeBytes  int64
	transcript clip.Transcript
}

// ensureArtifacts downloads, extracts, and transcribes whatever is missing.
// Artifacts are keyed by natural key alone so a second word that reaches the
// same clip reuses them, and a crash mid-verification resumes where it left
// off.
func (s *Stage) ensureArtifacts(ctx context.Context, logger *slog.Logger, word clip.Word, candidate clip.ScoredCandidate) (*artifacts, error) {
	dir := filepath.Join(s.cfg.Paths.CacheDir, artifactDirName, candidate.NaturalKey())
	format := media.FormatFromURL(candidate.DownloadURL)
	mediaPath := filepath.Join(dir, "media."+format)
	audioPath := filepath.Join(dir, "audio.wav")

	if !fileExists(mediaPath) {
		if err := s.downloadMedia(ctx, word, candidate, mediaPath); err != nil {
			return nil, err
		}
		logger.Debug("media downloaded", logging.String(logging.FieldClipKey, candidate.NaturalKey()))
	}
	info, err := os.Stat(mediaPath)
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "verify", "stat media", "", err)
	}

	if !fileExists(audioPath) {
		if err := media.ExtractAudio(ctx, s.cfg.FFmpegBinary(), mediaPath, audioPath); err != nil {
			// A failed extraction usually means a bad download; drop the
			// media artifact so the next run fetches it fresh.
			os.Remove(mediaPath)
			return nil, services.Wrap(services.ErrExternalTool, "verify", "extract audio", "", err)
		}
	}

	transcript, err := s.ensureTranscript(ctx, logger, audioPath, filepath.Join(dir, "transcript.json"))
	if err != nil {
		return nil, err
	}

	return &artifacts{
		mediaPath:  mediaPath,
		format:     format,
		sizeBytes:  info.Size(),
		transcript: transcript,
	}, nil
}

// downloadMedia fetches the candidate's media through the shared retry
// policy. An expired or rejected handle is a resource failure, and the
// word's search cache is invalidated so the next run queries fresh handles
// instead of replaying stale ones.
func (s *Stage) downloadMedia(ctx context.Context, word clip.Word, candidate clip.ScoredCandidate, dest string) error {
	if candidate.HandleExpired(time.Now()) {
		if err := s.invalidator.InvalidateWord(word); err != nil {
			return err
		}
		return services.Wrap(services.ErrResource, "verify", "download media",
			fmt.Sprintf("download handle expired %s", candidate.DownloadExpiresAt.Format(time.RFC3339)), nil)
	}

	err := s.retrier.Do(ctx, "media download", func(ctx context.Context) error {
		_, downloadErr := media.Download(ctx, s.httpClient, candidate.DownloadURL, dest)
		return downloadErr
	})
	if err == nil {
		return nil
	}

	var httpErr *ratelimit.HTTPError
	if errors.As(err, &httpErr) && !ratelimit.RetryableStatus(httpErr.StatusCode) {
		if invErr := s.invalidator.InvalidateWord(word); invErr != nil {
			return invErr
		}
		return services.Wrap(services.ErrResource, "verify", "download media", "download handle rejected", err)
	}
	return err
}

// ensureTranscript returns the cached transcript artifact or produces and
// persists a fresh one.
func (s *Stage) ensureTranscript(ctx context.Context, logger *slog.Logger, audioPath, transcriptPath string) (clip.Transcript, error) {
	if data, err := os.ReadFile(transcriptPath); err == nil {
		var cached clip.Transcript
		unmarshalErr := json.Unmarshal(data, &cached)
		if unmarshalErr == nil {
			return cached, nil
		}
		logger.Warn("transcript artifact unreadable, retranscribing", logging.Error(unmarshalErr))
	}

	transcript, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return clip.Transcript{}, err
	}

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return clip.Transcript{}, fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(transcriptPath, data, 0o644); err != nil {
		return clip.Transcript{}, fmt.Errorf("persist transcript: %w", err)
	}
	return transcript, nil
}

// judgeTranscript runs the audio judgment. A quality failure from the judge
// becomes a cacheable parse-failed verdict rather than an error so the clip
// is never re-judged.
func (s *Stage) judgeTranscript(ctx context.Context, word clip.Word, transcript string) (verdict, error) {
	judgment, err := s.judge.JudgeRelevance(ctx, word.Text, word.Language, transcript)
	if err != nil {
		if errors.Is(err, services.ErrQuality) && !services.IsFatal(err) {
			return verdict{ParseFailed: true, Notes: err.Error()}, nil
		}
		return verdict{}, err
	}
	return verdict{
		FinalScore:  judgment.RelevanceScore,
		WordPresent: judgment.WordPresent(word.Text),
		Notes:       judgment.ConfidenceNotes,
	}, nil
}

func rejectionReason(v verdict, threshold float64) string {
	switch {
	case v.ParseFailed:
		return v.Notes
	case !v.WordPresent:
		return fmt.Sprintf("word absent from audio transcript (score %.2f)", v.FinalScore)
	default:
		return fmt.Sprintf("final score %.2f below threshold %.2f", v.FinalScore, threshold)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
