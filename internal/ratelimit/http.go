package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxBodySnippetLength = 200

// HTTPError captures a non-2xx response from an external service along with
// the Retry-After hint, when the server provided one.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

// NewHTTPError builds an HTTPError from a response and the already-read body.
func NewHTTPError(op string, resp *http.Response, body []byte) *HTTPError {
	return &HTTPError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       summarizeBody(body),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %s: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %s", e.Op, e.Status)
}

// Retryable reports whether the status code signals a condition worth
// retrying. Other 4xx statuses describe the request itself and repeat
// identically.
func (e *HTTPError) Retryable() bool {
	return RetryableStatus(e.StatusCode)
}

// RetryableStatus reports whether an HTTP status is worth retrying: request
// timeout, rate limiting, or a server-side failure. Used by SDK wrappers
// whose errors carry a status code but no *http.Response.
func RetryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout:
		return true
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

// parseRetryAfter interprets the Retry-After header, which carries either a
// delay in seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

// summarizeBody flattens a response body into a single bounded line suitable
// for error messages and logs.
func summarizeBody(body []byte) string {
	snippet := strings.Join(strings.Fields(string(body)), " ")
	if len(snippet) > maxBodySnippetLength {
		snippet = snippet[:maxBodySnippetLength] + "..."
	}
	return snippet
}
