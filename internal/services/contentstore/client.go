package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipdex/internal/clip"
	"clipdex/internal/ratelimit"
	"clipdex/internal/services"
)

const (
	defaultTimeoutSeconds = 120
	maxErrorBodyBytes     = 4096
)

// Config captures the connection settings for the content store.
type Config struct {
	BaseURL        string
	APIKey         string
	Source         string
	TimeoutSeconds int
}

// VideoItem is one video in an ingestion batch. Media bytes travel base64
// encoded inside the JSON body.
type VideoItem struct {
	NaturalKey      string        `json:"natural_key"`
	Format          string        `json:"format"`
	MediaBase64     string        `json:"media_base64"`
	SizeBytes       int64         `json:"size_bytes"`
	Transcript      string        `json:"transcript,omitempty"`
	AudioTranscript string        `json:"audio_transcript,omitempty"`
	Metadata        VideoMetadata `json:"metadata"`
	WordMappings    []WordMapping `json:"word_mappings"`
}

// VideoMetadata carries descriptive fields the store keeps alongside the
// video record.
type VideoMetadata struct {
	Title           string  `json:"title,omitempty"`
	SourceID        string  `json:"source_id,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// WordMapping is one word-to-video association submitted with a video.
type WordMapping struct {
	Word             string  `json:"word"`
	Language         string  `json:"language"`
	RelevanceScore   float64 `json:"relevance_score"`
	TranscriptSource string  `json:"transcript_source"`
}

// Ingestor defines the batch ingestion operation the upload stage consumes.
type Ingestor interface {
	IngestBatch(ctx context.Context, items []VideoItem) ([]clip.UploadResult, error)
}

// Client posts ingestion batches to the content store. The store owns
// natural-key deduplication; this client only reports per-item verdicts.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retrier    *ratelimit.Client
}

var _ Ingestor = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a content store client.
func New(cfg Config, retrier *ratelimit.Client, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "content store", "base url required", nil)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "content store", "api key required", nil)
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeoutSeconds
	}
	if retrier == nil {
		retrier = ratelimit.New(ratelimit.Policy{})
	}
	client := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		retrier: retrier,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// IngestBatch submits one batch and returns a result per submitted item, in
// submission order. Transport failures retry the whole batch; the store must
// dedupe on natural key, which is what makes the retry safe. Items the store
// leaves unanswered come back as failed so the caller never mistakes silence
// for success.
func (c *Client) IngestBatch(ctx context.Context, items []VideoItem) ([]clip.UploadResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	payload := ingestRequest{SourceID: c.cfg.Source, Videos: items}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("content store ingest: encode batch: %w", err)
	}

	var response ingestResponse
	err = c.retrier.Do(ctx, "content store ingest", func(ctx context.Context) error {
		result, postErr := c.postBatch(ctx, body)
		if postErr != nil {
			return postErr
		}
		response = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]ingestResult, len(response.Results))
	for _, result := range response.Results {
		byKey[result.NaturalKey] = result
	}

	results := make([]clip.UploadResult, 0, len(items))
	for _, item := range items {
		wire, ok := byKey[item.NaturalKey]
		if !ok {
			results = append(results, clip.UploadResult{
				NaturalKey: item.NaturalKey,
				Status:     clip.UploadFailed,
				Reason:     "missing from ingest response",
			})
			continue
		}
		results = append(results, wire.toUploadResult())
	}
	return results, nil
}

func (c *Client) postBatch(ctx context.Context, body []byte) (ingestResponse, error) {
	var response ingestResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/videos/ingest", bytes.NewReader(body))
	if err != nil {
		return response, fmt.Errorf("content store ingest: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response, fmt.Errorf("content store ingest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return response, ratelimit.NewHTTPError("content store ingest", resp, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return response, fmt.Errorf("content store ingest: decode response: %w", err)
	}
	return response, nil
}

type ingestRequest struct {
	SourceID string      `json:"source_id"`
	Videos   []VideoItem `json:"videos"`
}

type ingestResponse struct {
	Results []ingestResult `json:"results"`
}

type ingestResult struct {
	NaturalKey      string `json:"natural_key"`
	VideoID         string `json:"video_id"`
	Status          string `json:"status"`
	MappingsCreated int    `json:"mappings_created"`
	Reason          string `json:"reason,omitempty"`
}

func (r ingestResult) toUploadResult() clip.UploadResult {
	result := clip.UploadResult{
		NaturalKey:      r.NaturalKey,
		VideoID:         r.VideoID,
		MappingsCreated: r.MappingsCreated,
		Reason:          r.Reason,
	}
	switch clip.UploadStatus(r.Status) {
	case clip.UploadCreated:
		result.Status = clip.UploadCreated
	case clip.UploadExisted:
		result.Status = clip.UploadExisted
	case clip.UploadFailed:
		result.Status = clip.UploadFailed
	default:
		result.Status = clip.UploadFailed
		if result.Reason == "" {
			result.Reason = fmt.Sprintf("unknown ingest status %q", r.Status)
		}
	}
	return result
}
