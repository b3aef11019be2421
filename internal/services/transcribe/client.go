package transcribe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clipdex/internal/clip"
	"clipdex/internal/ratelimit"
	"clipdex/internal/services"
)

const (
	defaultModel          = "whisper-1"
	defaultTimeoutSeconds = 120
)

// Config captures the connection settings for the speech-to-text service.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Transcriber defines the transcription operation the verification stage
// consumes.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (clip.Transcript, error)
}

// Client wraps an OpenAI-compatible transcription endpoint. Requests ask for
// verbose JSON with word-level timestamps so the verification stage can judge
// exactly what was said and when.
type Client struct {
	cfg     Config
	api     *openai.Client
	retrier *ratelimit.Client
}

var _ Transcriber = (*Client)(nil)

// New creates a transcription client.
func New(cfg Config, retrier *ratelimit.Client) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "transcribe", "api key required", nil)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeoutSeconds
	}
	if retrier == nil {
		retrier = ratelimit.New(ratelimit.Policy{})
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		apiConfig.BaseURL = baseURL
	}
	apiConfig.HTTPClient = &http.Client{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}

	return &Client{
		cfg:     cfg,
		api:     openai.NewClientWithConfig(apiConfig),
		retrier: retrier,
	}, nil
}

// Transcribe sends the audio file at audioPath and returns the word-level
// transcript. The file is reopened on each retry attempt, so a failed upload
// never consumes the input.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (clip.Transcript, error) {
	var transcript clip.Transcript
	info, err := os.Stat(audioPath)
	if err != nil {
		return transcript, services.Wrap(services.ErrResource, "", "transcribe", fmt.Sprintf("audio file unavailable at %s", audioPath), err)
	}
	if info.Size() == 0 {
		return transcript, services.Wrap(services.ErrResource, "", "transcribe", fmt.Sprintf("audio file empty at %s", audioPath), nil)
	}

	request := openai.AudioRequest{
		Model:    c.cfg.Model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	}

	var response openai.AudioResponse
	err = c.retrier.Do(ctx, "transcribe", func(ctx context.Context) error {
		result, callErr := c.api.CreateTranscription(ctx, request)
		if callErr != nil {
			return classifyAPIError(callErr)
		}
		response = result
		return nil
	})
	if err != nil {
		return transcript, err
	}

	transcript = clip.Transcript{
		Text:            strings.TrimSpace(response.Text),
		Language:        strings.TrimSpace(response.Language),
		DurationSeconds: response.Duration,
		Words:           make([]clip.TranscriptWord, 0, len(response.Words)),
	}
	for _, word := range response.Words {
		transcript.Words = append(transcript.Words, clip.TranscriptWord{
			Word:       word.Word,
			Start:      word.Start,
			End:        word.End,
			Confidence: segmentConfidence(response, word.Start),
		})
	}
	return transcript, nil
}

// segmentConfidence estimates a word's confidence from the average log
// probability of the segment containing it. Words outside every segment get
// zero, meaning unknown.
func segmentConfidence(response openai.AudioResponse, at float64) float64 {
	for _, segment := range response.Segments {
		if at >= segment.Start && at <= segment.End {
			confidence := math.Exp(segment.AvgLogprob)
			if confidence > 1 {
				confidence = 1
			}
			return confidence
		}
	}
	return 0
}

// classifyAPIError maps SDK errors onto the shared failure taxonomy so the
// rate-limited client retries exactly the conditions it would for raw HTTP.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if ratelimit.RetryableStatus(apiErr.HTTPStatusCode) {
			return services.Wrap(services.ErrTransient, "", "transcribe", fmt.Sprintf("status %d", apiErr.HTTPStatusCode), err)
		}
		return err
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if ratelimit.RetryableStatus(reqErr.HTTPStatusCode) {
			return services.Wrap(services.ErrTransient, "", "transcribe", fmt.Sprintf("status %d", reqErr.HTTPStatusCode), err)
		}
		return err
	}
	return err
}
