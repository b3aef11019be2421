package services

import "context"

type contextKey string

const (
	wordKey    contextKey = "word"
	stageKey   contextKey = "stage"
	clipKeyKey contextKey = "clip_key"
	runIDKey   contextKey = "run_id"
)

// WithWord annotates context with the vocabulary word being processed.
func WithWord(ctx context.Context, word string) context.Context {
	if word == "" {
		return ctx
	}
	return context.WithValue(ctx, wordKey, word)
}

// WordFromContext extracts the vocabulary word if present.
func WordFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(wordKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithClipKey annotates context with a clip's natural key.
func WithClipKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, clipKeyKey, key)
}

// ClipKeyFromContext extracts the clip natural key if present.
func ClipKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(clipKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
