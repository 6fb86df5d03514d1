package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newMemoryTracker(cfg Config) *Tracker {
	return NewTracker(nil, cfg, zerolog.Nop())
}

func response(status int, retryAfter string) *http.Response {
	resp := &http.Response{StatusCode: status, Header: http.Header{}}
	if retryAfter != "" {
		resp.Header.Set("Retry-After", retryAfter)
	}
	return resp
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"seconds", "30", 30 * time.Second, true},
		{"zero", "0", 0, true},
		{"padded", " 5 ", 5 * time.Second, true},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second, true},
		{"date in the past", now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
		{"negative", "-3", 0, false},
		{"garbage", "soon", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRetryAfter(tt.value, now)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseRetryAfter(%q) = (%v, %v), want (%v, %v)", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTracker_BlocksOnTooManyRequests(t *testing.T) {
	tracker := newMemoryTracker(Config{Burst: 1})
	ctx := context.Background()

	if err := tracker.UpdateFromResponse(ctx, response(http.StatusTooManyRequests, "30")); err != nil {
		t.Fatalf("UpdateFromResponse() error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Strikes != 1 || !state.IsBlocked() {
		t.Errorf("state = %+v, want one strike and blocked", state)
	}
	if d := state.TimeUntilReset(); d < 29*time.Second || d > 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want about 30s", d)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true while blocked")
	}
}

func TestTracker_DefaultBackoffGrowsPerStrike(t *testing.T) {
	tracker := newMemoryTracker(Config{DefaultBackoff: time.Second})
	ctx := context.Background()

	_ = tracker.UpdateFromResponse(ctx, response(http.StatusServiceUnavailable, ""))
	_ = tracker.UpdateFromResponse(ctx, response(http.StatusServiceUnavailable, "not-a-number"))

	state, _ := tracker.GetState(ctx)
	if state.Strikes != 2 {
		t.Errorf("Strikes = %d, want 2", state.Strikes)
	}
	if d := state.TimeUntilReset(); d < 1500*time.Millisecond || d > 2*time.Second {
		t.Errorf("TimeUntilReset() = %v, want about 2s", d)
	}
}

func TestTracker_BackoffIsCapped(t *testing.T) {
	tracker := newMemoryTracker(DefaultConfig())
	ctx := context.Background()

	_ = tracker.UpdateFromResponse(ctx, response(http.StatusTooManyRequests, "86400"))

	state, _ := tracker.GetState(ctx)
	if d := state.TimeUntilReset(); d > MaxBackoff {
		t.Errorf("TimeUntilReset() = %v, want at most %v", d, MaxBackoff)
	}
}

func TestTracker_SuccessClearsStrikes(t *testing.T) {
	tracker := newMemoryTracker(Config{})
	ctx := context.Background()

	_ = tracker.UpdateFromResponse(ctx, response(http.StatusTooManyRequests, "0"))
	_ = tracker.UpdateFromResponse(ctx, response(http.StatusOK, ""))

	state, _ := tracker.GetState(ctx)
	if state.Strikes != 0 || state.IsBlocked() {
		t.Errorf("state after success = %+v", state)
	}
}

func TestTracker_ClientErrorsLeaveState(t *testing.T) {
	tracker := newMemoryTracker(Config{})
	ctx := context.Background()

	_ = tracker.UpdateFromResponse(ctx, response(http.StatusTooManyRequests, "0"))
	_ = tracker.UpdateFromResponse(ctx, response(http.StatusNotFound, ""))
	_ = tracker.UpdateFromResponse(ctx, nil)

	state, _ := tracker.GetState(ctx)
	if state.Strikes != 1 {
		t.Errorf("Strikes = %d, want 1", state.Strikes)
	}
}

func TestTracker_ThrottlesAfterRepeatedStrikes(t *testing.T) {
	tracker := newMemoryTracker(Config{ThrottleDelay: 30 * time.Millisecond})
	ctx := context.Background()

	for i := 0; i < StrikesWarning; i++ {
		_ = tracker.UpdateFromResponse(ctx, response(http.StatusTooManyRequests, "0"))
	}

	start := time.Now()
	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil || !allowed {
		t.Fatalf("ShouldAllowRequest() = (%v, %v), want (true, nil)", allowed, err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("throttle delay not applied: %v", elapsed)
	}
}

func TestTracker_TokenBucket(t *testing.T) {
	tracker := newMemoryTracker(Config{RequestsPerSecond: 20, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		allowed, err := tracker.ShouldAllowRequest(ctx)
		if err != nil || !allowed {
			t.Fatalf("ShouldAllowRequest() = (%v, %v)", allowed, err)
		}
	}
	// Two refills at 20/s take about 100ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("token bucket did not pace requests: %v", elapsed)
	}
}

func TestTracker_ContextCancelled(t *testing.T) {
	tracker := newMemoryTracker(Config{RequestsPerSecond: 0.01, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())

	if allowed, _ := tracker.ShouldAllowRequest(ctx); !allowed {
		t.Fatal("first request should use the burst")
	}

	cancel()
	allowed, err := tracker.ShouldAllowRequest(ctx)
	if allowed || err == nil {
		t.Errorf("ShouldAllowRequest() = (%v, %v), want (false, error)", allowed, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
