package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"clipdex/internal/logging"
	"clipdex/internal/services"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Policy bounds the retry and pacing behavior applied to external calls.
// Zero fields fall back to repository defaults; RequestsPerSecond of zero
// disables pacing entirely.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RequestsPerSecond float64
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Client applies a shared Policy to arbitrary operations. A single Client is
// built at startup and handed to every service client so all external calls
// share one pacing budget.
type Client struct {
	policy  Policy
	limiter *rate.Limiter
	logger  *slog.Logger
	timer   backoff.Timer
}

// Option adjusts Client construction.
type Option func(*Client)

// WithLogger attaches a logger for retry visibility.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimer overrides the timer that spaces retry attempts. Tests inject an
// immediate timer so retry paths run without real sleeps.
func WithTimer(timer backoff.Timer) Option {
	return func(c *Client) {
		c.timer = timer
	}
}

// New builds a Client from the policy.
func New(policy Policy, opts ...Option) *Client {
	client := &Client{
		policy: policy.normalized(),
		logger: logging.NewNop(),
	}
	if policy.RequestsPerSecond > 0 {
		burst := int(math.Ceil(policy.RequestsPerSecond))
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Policy returns the normalized policy the client runs with.
func (c *Client) Policy() Policy {
	return c.policy
}

// Do invokes fn, retrying transient failures with exponential backoff until
// it succeeds, a non-retryable error surfaces, the context is canceled, or
// the attempt budget is exhausted. Exhaustion returns an error tagged
// transient that wraps the last attempt's error; non-retryable errors are
// returned unchanged so callers keep their classification.
func (c *Client) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.policy.BaseDelay
	expo.MaxInterval = c.policy.MaxDelay
	expo.MaxElapsedTime = 0

	hinted := &retryAfterBackOff{delegate: expo}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(c.policy.MaxAttempts-1)), ctx)

	attempts := 0
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		hinted.hint = retryAfterHint(err)
		return err
	}

	notify := func(err error, delay time.Duration) {
		c.logger.Debug("retrying after transient failure",
			"operation", op,
			"attempt", attempts,
			"delay", delay.String(),
			"error", err)
	}

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, c.timer)
	if err == nil {
		return nil
	}
	if Retryable(err) {
		return services.Wrap(services.ErrTransient, "", op,
			fmt.Sprintf("failed after %d attempts", attempts), err)
	}
	return err
}

// Retryable classifies an error as worth another attempt. Explicit
// classification markers win, then HTTP status, then network errors.
// Cancellation is caller intent and never retried; a deadline error is
// retried only when it arrives as a network error, meaning a per-request
// timeout rather than the run's own context expiring.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, services.ErrQuality),
		errors.Is(err, services.ErrResource),
		errors.Is(err, services.ErrExternalTool),
		errors.Is(err, services.ErrConfiguration):
		return false
	case errors.Is(err, services.ErrTransient):
		return true
	case errors.Is(err, context.Canceled):
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// retryAfterHint extracts the server's Retry-After delay when the error
// carries one.
func retryAfterHint(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}

// retryAfterBackOff raises the next delay to the server-provided hint, then
// clears it. The exponential schedule resumes on the following attempt.
type retryAfterBackOff struct {
	delegate backoff.BackOff
	hint     time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.delegate.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func (b *retryAfterBackOff) Reset() {
	b.hint = 0
	b.delegate.Reset()
}
