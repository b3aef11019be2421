package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clipdex/internal/ratelimit"
	"clipdex/internal/services"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1"
	defaultTimeoutSeconds = 60
	maxErrorBodyBytes     = 4096
)

// Config captures the settings needed to reach an OpenAI-compatible
// chat-completion endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client speaks the chat-completion protocol in JSON mode. Retries, pacing,
// and Retry-After handling are delegated to the shared rate-limited client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retrier    *ratelimit.Client
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient builds a chat-completion client. A nil retrier gets the default
// retry policy.
func NewClient(cfg Config, retrier *ratelimit.Client, opts ...Option) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
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
	return client
}

// CompleteJSON sends a system/user prompt pair and returns the raw completion
// content. The request pins temperature to zero and asks for a JSON object so
// responses stay machine-parseable.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "llm request", "system prompt is empty", nil)
	}
	if strings.TrimSpace(userPrompt) == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "llm request", "user prompt is empty", nil)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "llm request", "API key is not configured", nil)
	}
	if strings.TrimSpace(c.cfg.Model) == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "llm request", "model is not configured", nil)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var content string
	err := c.retrier.Do(ctx, "llm complete", func(ctx context.Context) error {
		result, sendErr := c.sendChatRequest(ctx, payload)
		if sendErr != nil {
			return sendErr
		}
		content = result
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) sendChatRequest(ctx context.Context, payload chatCompletionRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode payload: %w", err)
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "chat/completions")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "", "llm request", fmt.Sprintf("invalid base URL %q", c.cfg.BaseURL), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm request: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", ratelimit.NewHTTPError("llm request", resp, snippet)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil && strings.TrimSpace(completion.Error.Message) != "" {
		return "", fmt.Errorf("llm request: api error: %s", completion.Error.Message)
	}

	content, err := extractCompletionContent(completion)
	if err != nil {
		// Blank completions from flaky providers usually clear up on retry.
		return "", services.Wrap(services.ErrTransient, "", "llm request", "completion missing content", err)
	}
	return content, nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
	Error   *chatCompletionError   `json:"error,omitempty"`
}

type chatCompletionChoice struct {
	Message      chatCompletionMessage  `json:"message"`
	Delta        *chatCompletionMessage `json:"delta,omitempty"`
	Text         string                 `json:"text,omitempty"`
	FinishReason string                 `json:"finish_reason,omitempty"`
}

type chatCompletionMessage struct {
	Content   string         `json:"content"`
	Refusal   string         `json:"refusal,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Arguments string `json:"arguments"`
}

type chatCompletionError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

// extractCompletionContent pulls usable text out of a completion, tolerating
// providers that answer via delta frames, legacy text fields, or tool-call
// arguments instead of message content.
func extractCompletionContent(completion chatCompletionResponse) (string, error) {
	if len(completion.Choices) == 0 {
		return "", &emptyContentError{reason: "no choices"}
	}
	choice := completion.Choices[0]
	if content := strings.TrimSpace(choice.Message.Content); content != "" {
		return content, nil
	}
	if choice.Delta != nil {
		if content := strings.TrimSpace(choice.Delta.Content); content != "" {
			return content, nil
		}
	}
	if content := strings.TrimSpace(choice.Text); content != "" {
		return content, nil
	}
	for _, call := range choice.Message.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args, nil
		}
	}
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return "", &emptyContentError{reason: "refusal", detail: refusal}
	}
	return "", &emptyContentError{reason: "empty content", finishReason: choice.FinishReason}
}

type emptyContentError struct {
	reason       string
	detail       string
	finishReason string
}

func (e *emptyContentError) Error() string {
	var b strings.Builder
	b.WriteString(e.reason)
	if e.detail != "" {
		fmt.Fprintf(&b, ": %s", summarizePayloadSnippet(e.detail))
	}
	if e.finishReason != "" {
		fmt.Fprintf(&b, " (finish_reason=%s)", e.finishReason)
	}
	return b.String()
}
