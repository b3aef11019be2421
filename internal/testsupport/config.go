package testsupport

import (
	"path/filepath"
	"testing"

	"clipdex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// All service credentials are filled with placeholders so validation passes;
// tests that exercise a real client point the base URLs at an httptest
// server. Retry delays are collapsed so retry paths run without sleeping.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.ClipSearch.BaseURL = "http://127.0.0.1:0"
	cfgVal.ClipSearch.APIKey = "test"
	cfgVal.LLM.APIKey = "test"
	cfgVal.Transcribe.APIKey = "test"
	cfgVal.ContentStore.BaseURL = "http://127.0.0.1:0"
	cfgVal.ContentStore.APIKey = "test"
	cfgVal.Retry.MaxAttempts = 2
	cfgVal.Retry.BaseDelayMS = 1
	cfgVal.Retry.MaxDelayMS = 5
	cfgVal.Retry.RequestsPerSecond = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDownloadOnly enables download-only mode on the test config.
func WithDownloadOnly() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.DownloadOnly = true
	}
}

// WithBatchSize overrides the upload batch size on the test config.
func WithBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.BatchSize = size
	}
}

// WithMappingCap overrides the per-video mapping cap on the test config.
func WithMappingCap(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxMappingsPerVideo = limit
	}
}

// WithThresholds overrides both quality gates on the test config.
func WithThresholds(candidate, verification float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.CandidateThreshold = candidate
		b.cfg.Pipeline.VerificationThreshold = verification
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
