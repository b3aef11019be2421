package upload

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"

	"clipdex/internal/checkpoint"
	"clipdex/internal/clip"
	"clipdex/internal/config"
	"clipdex/internal/logging"
	"clipdex/internal/services"
	"clipdex/internal/services/contentstore"
)

// Stage submits verified clips to the content store in batches and records a
// word-video mapping for every accepted item. Upload units are word-scoped:
// a later word whose clip resolves to an already-ingested video still
// submits, and the store answers existed while merging the new mapping.
type Stage struct {
	cfg      *config.Config
	store    *checkpoint.Store
	ingestor contentstore.Ingestor
	logger   *slog.Logger
}

// New creates the upload stage.
func New(cfg *config.Config, store *checkpoint.Store, ingestor contentstore.Ingestor, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:      cfg,
		store:    store,
		ingestor: ingestor,
		logger:   logging.NewComponentLogger(logger, "upload"),
	}
}

// Upload ingests the clips that still need it. Already-uploaded units are
// skipped, capped videos are closed out without submission, and per-item
// rejections are recorded while the rest of their batch proceeds. Only
// configuration errors propagate.
func (s *Stage) Upload(ctx context.Context, clips []clip.VerifiedClip) ([]clip.UploadResult, error) {
	logger := logging.WithContext(ctx, s.logger)

	pending, err := s.eligible(ctx, logger, clips)
	if err != nil {
		return nil, err
	}

	batchSize := s.cfg.Pipeline.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	results := make([]clip.UploadResult, 0, len(pending))
	for start := 0; start < len(pending); start += batchSize {
		batch := pending[start:min(start+batchSize, len(pending))]
		batchResults, err := s.uploadBatch(ctx, logger, batch)
		if err != nil {
			if services.IsFatal(err) {
				return nil, err
			}
			logger.Warn("batch upload failed, skipping batch",
				logging.Int("clips", len(batch)),
				logging.Error(err))
			for _, vc := range batch {
				unitKey := clip.UnitKey(vc.Word, vc.NaturalKey())
				if recordErr := s.store.RecordFailure(ctx, checkpoint.StageUpload, unitKey, services.Class(err), err.Error()); recordErr != nil {
					return nil, recordErr
				}
			}
			continue
		}
		results = append(results, batchResults...)
	}
	return results, nil
}

// eligible filters out clips whose unit already uploaded and clips whose
// video is at the mapping cap. The cap counts durable mappings from earlier
// runs plus clips admitted earlier in this call.
func (s *Stage) eligible(ctx context.Context, logger *slog.Logger, clips []clip.VerifiedClip) ([]clip.VerifiedClip, error) {
	pending := make([]clip.VerifiedClip, 0, len(clips))
	admitted := make(map[string]int)

	for _, vc := range clips {
		naturalKey := vc.NaturalKey()
		unitKey := clip.UnitKey(vc.Word, naturalKey)

		done, err := s.store.IsDone(ctx, checkpoint.StageUpload, unitKey)
		if err != nil {
			return nil, err
		}
		if done {
			logger.Debug("clip already uploaded", logging.String(logging.FieldClipKey, naturalKey))
			continue
		}

		durable, err := s.store.MappingCount(ctx, naturalKey)
		if err != nil {
			return nil, err
		}
		if durable+admitted[naturalKey] >= s.cfg.Pipeline.MaxMappingsPerVideo {
			// The video is full. The unit completes without a submission so
			// reruns stop considering it; this is bookkeeping, not a failure.
			logger.Info("mapping cap reached, skipping clip",
				logging.String(logging.FieldClipKey, naturalKey),
				logging.Int("mappings", durable))
			if err := s.store.MarkDone(ctx, checkpoint.StageUpload, unitKey); err != nil {
				return nil, err
			}
			continue
		}

		admitted[naturalKey]++
		pending = append(pending, vc)
	}
	return pending, nil
}

func (s *Stage) uploadBatch(ctx context.Context, logger *slog.Logger, batch []clip.VerifiedClip) ([]clip.UploadResult, error) {
	items := make([]contentstore.VideoItem, 0, len(batch))
	byKey := make(map[string]clip.VerifiedClip, len(batch))
	for _, vc := range batch {
		item, err := buildItem(vc)
		if err != nil {
			unitKey := clip.UnitKey(vc.Word, vc.NaturalKey())
			logger.Warn("clip not uploadable, skipping",
				logging.String(logging.FieldClipKey, vc.NaturalKey()),
				logging.Error(err))
			if recordErr := s.store.RecordFailure(ctx, checkpoint.StageUpload, unitKey, services.Class(err), err.Error()); recordErr != nil {
				return nil, recordErr
			}
			continue
		}
		items = append(items, item)
		byKey[item.NaturalKey] = vc
	}
	if len(items) == 0 {
		return nil, nil
	}

	results, err := s.ingestor.IngestBatch(ctx, items)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		vc, ok := byKey[result.NaturalKey]
		if !ok {
			logger.Warn("ingest result for unknown clip", logging.String(logging.FieldClipKey, result.NaturalKey))
			continue
		}
		unitKey := clip.UnitKey(vc.Word, result.NaturalKey)

		switch result.Status {
		case clip.UploadCreated, clip.UploadExisted:
			mapping := clip.Mapping{
				Word:             vc.Word.Text,
				Language:         vc.Word.Language,
				NaturalKey:       result.NaturalKey,
				RelevanceScore:   vc.FinalScore,
				TranscriptSource: clip.TranscriptSourceAudio,
			}
			// Mapping before marker: a crash in between re-submits next run,
			// the store answers existed, and the mapping lands then.
			if _, err := s.store.RecordMapping(ctx, mapping, result.VideoID); err != nil {
				return nil, err
			}
			if err := s.store.MarkDone(ctx, checkpoint.StageUpload, unitKey); err != nil {
				return nil, err
			}
			logger.Info("clip uploaded",
				logging.String(logging.FieldClipKey, result.NaturalKey),
				logging.String("status", string(result.Status)),
				logging.Int("mappings_created", result.MappingsCreated))
		default:
			logger.Warn("content store rejected clip",
				logging.String(logging.FieldClipKey, result.NaturalKey),
				logging.String("reason", result.Reason))
			if err := s.store.RecordFailure(ctx, checkpoint.StageUpload, unitKey, services.ClassResource, result.Reason); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// buildItem reads the media artifact and assembles the ingest payload for
// one clip.
func buildItem(vc clip.VerifiedClip) (contentstore.VideoItem, error) {
	data, err := os.ReadFile(vc.MediaPath)
	if err != nil {
		return contentstore.VideoItem{}, services.Wrap(services.ErrResource, "upload", "read media", "media artifact unavailable", err)
	}
	return contentstore.VideoItem{
		NaturalKey:      vc.NaturalKey(),
		Format:          vc.Format,
		MediaBase64:     base64.StdEncoding.EncodeToString(data),
		SizeBytes:       int64(len(data)),
		Transcript:      vc.TranscriptSnippet,
		AudioTranscript: vc.AudioTranscript,
		Metadata: contentstore.VideoMetadata{
			Title:           vc.Title,
			SourceID:        vc.SourceID,
			DurationSeconds: vc.DurationSeconds,
		},
		WordMappings: []contentstore.WordMapping{{
			Word:             vc.Word.Text,
			Language:         vc.Word.Language,
			RelevanceScore:   vc.FinalScore,
			TranscriptSource: string(clip.TranscriptSourceAudio),
		}},
	}, nil
}
