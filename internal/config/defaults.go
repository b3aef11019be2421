package config

const (
	defaultDataDir  = "~/.local/share/clipdex"
	defaultCacheDir = "~/.cache/clipdex"
	defaultLogDir   = "~/.local/share/clipdex/logs"

	defaultMaxVideos             = 15
	defaultCandidateThreshold    = 0.6
	defaultVerificationThreshold = 0.6
	defaultBatchSize             = 10
	defaultMaxMappingsPerVideo   = 5
	defaultMinDurationSeconds    = 3
	defaultMaxDurationSeconds    = 60
	defaultLanguage              = "en"

	defaultClipSearchSource         = "clipbank"
	defaultClipSearchPageSize       = 25
	defaultClipSearchTimeoutSeconds = 30

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds = 60

	defaultTranscribeModel          = "whisper-1"
	defaultTranscribeTimeoutSeconds = 300

	defaultContentStoreTimeoutSeconds = 120

	defaultRetryMaxAttempts       = 5
	defaultRetryBaseDelayMS       = 1000
	defaultRetryMaxDelayMS        = 10000
	defaultRetryRequestsPerSecond = 2.0

	defaultNotifyRequestTimeout = 10

	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultLogMaxSizeMB  = 100
	defaultLogMaxBackups = 3
	defaultLogMaxAgeDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
		},
		Pipeline: Pipeline{
			MaxVideos:             defaultMaxVideos,
			CandidateThreshold:    defaultCandidateThreshold,
			VerificationThreshold: defaultVerificationThreshold,
			BatchSize:             defaultBatchSize,
			MaxMappingsPerVideo:   defaultMaxMappingsPerVideo,
			MinDurationSeconds:    defaultMinDurationSeconds,
			MaxDurationSeconds:    defaultMaxDurationSeconds,
			DefaultLanguage:       defaultLanguage,
		},
		ClipSearch: ClipSearch{
			Source:         defaultClipSearchSource,
			PageSize:       defaultClipSearchPageSize,
			TimeoutSeconds: defaultClipSearchTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Transcribe: Transcribe{
			Model:          defaultTranscribeModel,
			TimeoutSeconds: defaultTranscribeTimeoutSeconds,
		},
		ContentStore: ContentStore{
			TimeoutSeconds: defaultContentStoreTimeoutSeconds,
		},
		Retry: Retry{
			MaxAttempts:       defaultRetryMaxAttempts,
			BaseDelayMS:       defaultRetryBaseDelayMS,
			MaxDelayMS:        defaultRetryMaxDelayMS,
			RequestsPerSecond: defaultRetryRequestsPerSecond,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
