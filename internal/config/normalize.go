package config

import (
	"fmt"
	"os"
	"strings"

	"clipdex/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeClipSearch()
	c.normalizeLLM()
	c.normalizeTranscribe()
	c.normalizeContentStore()
	c.normalizeRetry()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.MaxVideos <= 0 {
		c.Pipeline.MaxVideos = defaultMaxVideos
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = defaultBatchSize
	}
	if c.Pipeline.MaxMappingsPerVideo <= 0 {
		c.Pipeline.MaxMappingsPerVideo = defaultMaxMappingsPerVideo
	}
	if c.Pipeline.MinDurationSeconds <= 0 {
		c.Pipeline.MinDurationSeconds = defaultMinDurationSeconds
	}
	if c.Pipeline.MaxDurationSeconds <= 0 {
		c.Pipeline.MaxDurationSeconds = defaultMaxDurationSeconds
	}
	lang := language.ToISO2(c.Pipeline.DefaultLanguage)
	if lang == "" {
		lang = defaultLanguage
	}
	c.Pipeline.DefaultLanguage = lang
}

func (c *Config) normalizeClipSearch() {
	c.ClipSearch.BaseURL = strings.TrimRight(strings.TrimSpace(c.ClipSearch.BaseURL), "/")
	c.ClipSearch.APIKey = strings.TrimSpace(c.ClipSearch.APIKey)
	if c.ClipSearch.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPDEX_CLIPSEARCH_API_KEY"); ok {
			c.ClipSearch.APIKey = strings.TrimSpace(value)
		}
	}
	c.ClipSearch.Source = strings.TrimSpace(c.ClipSearch.Source)
	if c.ClipSearch.Source == "" {
		c.ClipSearch.Source = defaultClipSearchSource
	}
	if c.ClipSearch.PageSize <= 0 {
		c.ClipSearch.PageSize = defaultClipSearchPageSize
	}
	if c.ClipSearch.TimeoutSeconds <= 0 {
		c.ClipSearch.TimeoutSeconds = defaultClipSearchTimeoutSeconds
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPDEX_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTranscribe() {
	c.Transcribe.BaseURL = strings.TrimSpace(c.Transcribe.BaseURL)
	c.Transcribe.Model = strings.TrimSpace(c.Transcribe.Model)
	if c.Transcribe.Model == "" {
		c.Transcribe.Model = defaultTranscribeModel
	}
	c.Transcribe.APIKey = strings.TrimSpace(c.Transcribe.APIKey)
	if c.Transcribe.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPDEX_TRANSCRIBE_API_KEY"); ok {
			c.Transcribe.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Transcribe.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Transcribe.TimeoutSeconds <= 0 {
		c.Transcribe.TimeoutSeconds = defaultTranscribeTimeoutSeconds
	}
}

func (c *Config) normalizeContentStore() {
	c.ContentStore.BaseURL = strings.TrimRight(strings.TrimSpace(c.ContentStore.BaseURL), "/")
	c.ContentStore.APIKey = strings.TrimSpace(c.ContentStore.APIKey)
	if c.ContentStore.APIKey == "" {
		if value, ok := os.LookupEnv("CLIPDEX_CONTENTSTORE_API_KEY"); ok {
			c.ContentStore.APIKey = strings.TrimSpace(value)
		}
	}
	if c.ContentStore.TimeoutSeconds <= 0 {
		c.ContentStore.TimeoutSeconds = defaultContentStoreTimeoutSeconds
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = defaultRetryBaseDelayMS
	}
	if c.Retry.MaxDelayMS <= 0 {
		c.Retry.MaxDelayMS = defaultRetryMaxDelayMS
	}
	if c.Retry.RequestsPerSecond < 0 {
		c.Retry.RequestsPerSecond = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CLIPDEX_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}
