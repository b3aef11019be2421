package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Validation failures are
// configuration errors: the run aborts rather than proceeding with a service
// it cannot call.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateClipSearch(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTranscribe(); err != nil {
		return err
	}
	if err := c.validateContentStore(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.CandidateThreshold < 0 || c.Pipeline.CandidateThreshold > 1 {
		return errors.New("pipeline.candidate_threshold must be between 0 and 1")
	}
	if c.Pipeline.VerificationThreshold < 0 || c.Pipeline.VerificationThreshold > 1 {
		return errors.New("pipeline.verification_threshold must be between 0 and 1")
	}
	if err := ensurePositiveMap(map[string]int{
		"pipeline.max_videos":             c.Pipeline.MaxVideos,
		"pipeline.batch_size":             c.Pipeline.BatchSize,
		"pipeline.max_mappings_per_video": c.Pipeline.MaxMappingsPerVideo,
		"pipeline.min_duration_seconds":   c.Pipeline.MinDurationSeconds,
	}); err != nil {
		return err
	}
	if c.Pipeline.MaxDurationSeconds <= c.Pipeline.MinDurationSeconds {
		return errors.New("pipeline.max_duration_seconds must be greater than pipeline.min_duration_seconds")
	}
	return nil
}

func (c *Config) validateClipSearch() error {
	if strings.TrimSpace(c.ClipSearch.BaseURL) == "" {
		return errors.New("clipsearch.base_url must be set")
	}
	if c.ClipSearch.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipdex/config.toml"
		}
		return fmt.Errorf("clipsearch.api_key is required. Set CLIPDEX_CLIPSEARCH_API_KEY env var or edit %s (create with 'clipdex config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required (or set CLIPDEX_LLM_API_KEY / OPENROUTER_API_KEY)")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateTranscribe() error {
	if c.Transcribe.APIKey == "" {
		return errors.New("transcribe.api_key is required (or set CLIPDEX_TRANSCRIBE_API_KEY / OPENAI_API_KEY)")
	}
	return nil
}

func (c *Config) validateContentStore() error {
	// Download-only runs never touch the content store, so its connection
	// settings are only required for full runs.
	if c.Pipeline.DownloadOnly {
		return nil
	}
	if strings.TrimSpace(c.ContentStore.BaseURL) == "" {
		return errors.New("contentstore.base_url must be set (or run with --download-only)")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if err := ensurePositiveMap(map[string]int{
		"retry.max_attempts":  c.Retry.MaxAttempts,
		"retry.base_delay_ms": c.Retry.BaseDelayMS,
		"retry.max_delay_ms":  c.Retry.MaxDelayMS,
	}); err != nil {
		return err
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.max_delay_ms must be >= retry.base_delay_ms")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
