package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// testBackoff returns a retry loop whose sleeps are recorded instead of
// performed.
func testBackoff(slept *[]time.Duration) backoff {
	b := newBackoff()
	b.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return b
}

func TestRetryThrottledThenSuccess(t *testing.T) {
	var slept []time.Duration
	b := testBackoff(&slept)

	calls := 0
	err := b.Do(context.Background(), "test", func() error {
		calls++
		if calls <= 2 {
			return &apiError{Status: http.StatusTooManyRequests, Body: "quota"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("2 throttled failures then success: %d invocations, want 3", calls)
	}
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(slept))
	}
	for i := 1; i < len(slept); i++ {
		if slept[i] <= slept[i-1] {
			t.Errorf("delays not strictly increasing: %v", slept)
		}
	}
	if slept[0] != retryBaseDelay || slept[1] != retryBaseDelay*retryMultiplier {
		t.Errorf("delays = %v, want [%v %v]", slept, retryBaseDelay, retryBaseDelay*retryMultiplier)
	}
}

func TestRetryTerminalFailsOnce(t *testing.T) {
	var slept []time.Duration
	b := testBackoff(&slept)

	terminal := &apiError{Status: http.StatusUnauthorized, Body: "bad key"}
	calls := 0
	err := b.Do(context.Background(), "test", func() error {
		calls++
		return terminal
	})
	if !errors.Is(err, terminal) {
		t.Fatalf("Do = %v, want the terminal error", err)
	}
	if calls != 1 {
		t.Errorf("terminal failure retried: %d invocations, want 1", calls)
	}
	if len(slept) != 0 {
		t.Errorf("terminal failure slept %d times", len(slept))
	}
}

func TestRetryPlainErrorNotRetried(t *testing.T) {
	var slept []time.Duration
	b := testBackoff(&slept)

	calls := 0
	b.Do(context.Background(), "test", func() error {
		calls++
		return errors.New("connection refused")
	})
	if calls != 1 {
		t.Errorf("network error retried: %d invocations, want 1", calls)
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	var slept []time.Duration
	b := testBackoff(&slept)

	throttle := &apiError{Status: http.StatusServiceUnavailable, Body: "overloaded"}
	calls := 0
	err := b.Do(context.Background(), "test", func() error {
		calls++
		return throttle
	})
	if !errors.Is(err, throttle) {
		t.Fatalf("Do = %v, want the last failure", err)
	}
	if calls != retryMaxAttempts {
		t.Errorf("%d invocations, want the attempt ceiling %d", calls, retryMaxAttempts)
	}
}

func TestRetryCancelledContext(t *testing.T) {
	b := newBackoff()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := b.Do(ctx, "test", func() error {
		calls++
		return &apiError{Status: http.StatusTooManyRequests}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("%d invocations after cancel, want 1", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &apiError{Status: 429}, true},
		{"overload", &apiError{Status: 503}, true},
		{"quota in body", &apiError{Status: 400, Body: "RESOURCE_EXHAUSTED: quota exceeded"}, true},
		{"overloaded in body", &apiError{Status: 529, Body: "model overloaded"}, true},
		{"auth", &apiError{Status: 401, Body: "invalid key"}, false},
		{"server error", &apiError{Status: 500, Body: "internal"}, false},
		{"plain error", errors.New("dial tcp: timeout"), false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("%s: isRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}
