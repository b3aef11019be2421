package clipsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clipdex/internal/clip"
	"clipdex/internal/ratelimit"
	"clipdex/internal/services"
)

const (
	defaultPageSize       = 25
	defaultTimeoutSeconds = 10
	maxErrorBodyBytes     = 4096
)

// Config captures the connection settings for the clip-search service.
type Config struct {
	BaseURL        string
	APIKey         string
	Source         string
	PageSize       int
	TimeoutSeconds int
}

// Query carries the search parameters for one vocabulary word.
type Query struct {
	Text               string
	Language           string
	MinDurationSeconds int
	MaxDurationSeconds int
	MaxResults         int
}

// Searcher defines the search operation the pipeline consumes.
type Searcher interface {
	Search(ctx context.Context, query Query) ([]clip.Candidate, error)
}

// Client calls the clip-search HTTP API and maps results to domain
// candidates. Every request goes through the shared rate-limited client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retrier    *ratelimit.Client
}

var _ Searcher = (*Client)(nil)

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

// New creates a clip-search client.
func New(cfg Config, retrier *ratelimit.Client, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "clip search", "api key required", nil)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "clip search", "base url required", nil)
	}
	cfg.Source = strings.TrimSpace(cfg.Source)
	if cfg.Source == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "clip search", "source slug required", nil)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
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

// Search pages through the service's results for the query, stopping at
// MaxResults or exhaustion. Results are deduplicated by source id in arrival
// order; results without a source id are dropped because no stable natural
// key can be derived for them.
func (c *Client) Search(ctx context.Context, query Query) ([]clip.Candidate, error) {
	query.Text = strings.TrimSpace(query.Text)
	if query.Text == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "clip search", "query must not be empty", nil)
	}
	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = c.cfg.PageSize
	}

	candidates := make([]clip.Candidate, 0, maxResults)
	seen := make(map[string]struct{}, maxResults)
	pageToken := ""
	for {
		remaining := maxResults - len(candidates)
		if remaining <= 0 {
			return candidates, nil
		}
		pageSize := c.cfg.PageSize
		if remaining < pageSize {
			pageSize = remaining
		}

		var page searchResponse
		err := c.retrier.Do(ctx, "clip search", func(ctx context.Context) error {
			result, fetchErr := c.fetchPage(ctx, query, pageSize, pageToken)
			if fetchErr != nil {
				return fetchErr
			}
			page = result
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, result := range page.Results {
			sourceID := strings.TrimSpace(result.SourceID)
			if sourceID == "" {
				continue
			}
			if _, dup := seen[sourceID]; dup {
				continue
			}
			seen[sourceID] = struct{}{}
			candidates = append(candidates, result.toCandidate(c.cfg.Source))
			if len(candidates) == maxResults {
				return candidates, nil
			}
		}

		if page.NextPageToken == "" {
			return candidates, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) fetchPage(ctx context.Context, query Query, pageSize int, pageToken string) (searchResponse, error) {
	var page searchResponse
	endpoint, err := url.Parse(c.cfg.BaseURL + "/v1/clips/search")
	if err != nil {
		return page, services.Wrap(services.ErrConfiguration, "", "clip search", fmt.Sprintf("invalid base url %q", c.cfg.BaseURL), err)
	}
	params := url.Values{}
	params.Set("query", query.Text)
	params.Set("sort", "relevance")
	params.Set("limit", strconv.Itoa(pageSize))
	if query.Language != "" {
		params.Set("language", query.Language)
	}
	if query.MinDurationSeconds > 0 {
		params.Set("min_duration", strconv.Itoa(query.MinDurationSeconds))
	}
	if query.MaxDurationSeconds > 0 {
		params.Set("max_duration", strconv.Itoa(query.MaxDurationSeconds))
	}
	if pageToken != "" {
		params.Set("page_token", pageToken)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return page, fmt.Errorf("clip search: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page, fmt.Errorf("clip search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return page, ratelimit.NewHTTPError("clip search", resp, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return page, fmt.Errorf("clip search: decode response: %w", err)
	}
	return page, nil
}

type searchResponse struct {
	Results       []searchResult `json:"results"`
	NextPageToken string         `json:"next_page_token"`
}

type searchResult struct {
	SourceID          string  `json:"source_id"`
	Title             string  `json:"title"`
	TranscriptSnippet string  `json:"transcript_snippet"`
	DurationSeconds   float64 `json:"duration_seconds"`
	DownloadURL       string  `json:"download_url"`
	DownloadExpiresAt string  `json:"download_expires_at"`
}

// toCandidate stamps the configured source slug onto the wire result. An
// expiry that fails to parse is treated as absent rather than failing the
// whole page.
func (r searchResult) toCandidate(source string) clip.Candidate {
	candidate := clip.Candidate{
		Source:            source,
		SourceID:          strings.TrimSpace(r.SourceID),
		Title:             strings.TrimSpace(r.Title),
		TranscriptSnippet: strings.TrimSpace(r.TranscriptSnippet),
		DurationSeconds:   r.DurationSeconds,
		DownloadURL:       strings.TrimSpace(r.DownloadURL),
	}
	if raw := strings.TrimSpace(r.DownloadExpiresAt); raw != "" {
		if expires, err := time.Parse(time.RFC3339, raw); err == nil {
			candidate.DownloadExpiresAt = expires
		}
	}
	return candidate
}
