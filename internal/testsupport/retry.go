package testsupport

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"clipdex/internal/ratelimit"
)

// RetryClient returns a rate-limited client with collapsed delays and an
// immediate timer so retry paths run without sleeping.
func RetryClient(t testing.TB) *ratelimit.Client {
	t.Helper()
	return ratelimit.New(ratelimit.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}, ratelimit.WithTimer(InstantTimer()))
}

// InstantTimer returns a backoff timer that fires as soon as it starts.
func InstantTimer() backoff.Timer {
	return &instantTimer{}
}

type instantTimer struct {
	ch chan time.Time
}

func (t *instantTimer) Start(time.Duration) {
	if t.ch == nil {
		t.ch = make(chan time.Time, 1)
	}
	t.ch <- time.Now()
}

func (t *instantTimer) C() <-chan time.Time { return t.ch }

func (t *instantTimer) Stop() {}
