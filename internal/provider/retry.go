package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nvaughn/polipulse/internal/logging"
)

// Retry policy shared by all network-backed calls: fixed starting
// delay, fixed x2 multiplier, fixed attempt ceiling. Only throttling
// and overload classifications are retried; everything else is
// terminal after one attempt.
const (
	retryMaxAttempts = 3
	retryBaseDelay   = 2 * time.Second
	retryMultiplier  = 2
)

// apiError carries the HTTP status and body of a failed backend call
// so the retry wrapper can classify it.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, truncate(e.Body, 200))
}

// isRetryable reports whether an error is a rate-limit or overload
// signal. Auth failures, malformed responses and plain network errors
// must not burn retry budget meant for transient throttling.
func isRetryable(err error) bool {
	var api *apiError
	if !errors.As(err, &api) {
		return false
	}
	if api.Status == http.StatusTooManyRequests || api.Status == http.StatusServiceUnavailable {
		return true
	}
	body := strings.ToLower(api.Body)
	return strings.Contains(body, "resource_exhausted") ||
		strings.Contains(body, "quota") ||
		strings.Contains(body, "overloaded")
}

// backoff is the shared retry loop. An explicit loop with an attempt
// counter, so the ceiling is trivially testable and the call stack
// stays flat.
type backoff struct {
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(context.Context, time.Duration) error
}

func newBackoff() backoff {
	return backoff{
		maxAttempts: retryMaxAttempts,
		baseDelay:   retryBaseDelay,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Do runs fn, retrying only retryable classifications with doubling
// delays. Terminal failures return immediately after logging.
func (b backoff) Do(ctx context.Context, op string, fn func() error) error {
	delay := b.baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			logging.Debug("terminal backend failure", "op", op, "error", err)
			return err
		}
		if attempt >= b.maxAttempts {
			logging.Warn("retry budget exhausted", "op", op, "attempts", attempt)
			return err
		}

		logging.Warn("backend throttled, backing off", "op", op, "attempt", attempt, "delay", delay)
		if serr := b.sleep(ctx, delay); serr != nil {
			return serr
		}
		delay *= retryMultiplier
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
