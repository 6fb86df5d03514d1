package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	backoffStrikes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recruit_rate_limit_strikes",
		Help: "Consecutive back-pressure responses received from the API",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruit_rate_limit_blocks_total",
		Help: "Total number of requests blocked by server back-off",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recruit_rate_limit_throttles_total",
		Help: "Total number of requests throttled after repeated back-pressure",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recruit_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a token bucket slot",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Config holds tracker settings.
type Config struct {
	// RequestsPerSecond is the token bucket refill rate. Zero disables the bucket.
	RequestsPerSecond float64

	// Burst is the token bucket size.
	Burst int

	// DefaultBackoff is the block applied per strike when a 429/503 carries
	// no usable Retry-After.
	DefaultBackoff time.Duration

	// ThrottleDelay is the pause applied while throttling.
	ThrottleDelay time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             5,
		DefaultBackoff:    2 * time.Second,
		ThrottleDelay:     500 * time.Millisecond,
	}
}

// Tracker gates requests on the token bucket and the server's back-off.
// With a nil Redis client the back-off state is kept in process.
type Tracker struct {
	redis   *redis.Client
	limiter *rate.Limiter
	config  Config
	logger  zerolog.Logger

	mu    sync.Mutex
	local BackoffState
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.DefaultBackoff <= 0 {
		cfg.DefaultBackoff = DefaultConfig().DefaultBackoff
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Tracker{
		redis:   redisClient,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		config:  cfg,
		logger:  logger,
	}
}

// GetState retrieves the current back-off state.
// Returns a clear state if nothing was recorded.
func (t *Tracker) GetState(ctx context.Context) (*BackoffState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	values, err := t.redis.MGet(ctx, RedisKeyBlockedUntil, RedisKeyStrikes, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get back-off state: %w", err)
	}

	state := &BackoffState{}
	if ms, ok := redisInt(values[0]); ok && ms > 0 {
		state.BlockedUntil = time.UnixMilli(ms)
	}
	if strikes, ok := redisInt(values[1]); ok {
		state.Strikes = int(strikes)
	}
	if ms, ok := redisInt(values[2]); ok {
		state.LastUpdate = time.UnixMilli(ms)
	}
	return state, nil
}

// UpdateFromResponse records the server's back-pressure signals.
// A 429 or 503 adds a strike and blocks until Retry-After (or the default
// back-off times the strike count); any other non-error status clears it.
func (t *Tracker) UpdateFromResponse(ctx context.Context, resp *http.Response) error {
	if resp == nil {
		return nil
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return t.recordStrike(ctx, resp)
	case resp.StatusCode < 400:
		return t.clear(ctx)
	default:
		return nil
	}
}

func (t *Tracker) recordStrike(ctx context.Context, resp *http.Response) error {
	current, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	strikes := current.Strikes + 1
	wait, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), now)
	if !ok {
		wait = t.config.DefaultBackoff * time.Duration(strikes)
	}
	if wait > MaxBackoff {
		wait = MaxBackoff
	}

	state := BackoffState{
		BlockedUntil: now.Add(wait),
		Strikes:      strikes,
		LastUpdate:   now,
	}
	if err := t.store(ctx, state); err != nil {
		return err
	}

	backoffStrikes.Set(float64(strikes))
	t.logger.Warn().
		Int("status", resp.StatusCode).
		Int("strikes", strikes).
		Dur("retry_after", wait).
		Time("blocked_until", state.BlockedUntil).
		Msg("API back-pressure, blocking requests")
	return nil
}

func (t *Tracker) clear(ctx context.Context) error {
	current, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	if current.Strikes == 0 {
		return nil
	}

	if err := t.store(ctx, BackoffState{LastUpdate: time.Now()}); err != nil {
		return err
	}
	backoffStrikes.Set(0)
	t.logger.Info().Int("strikes", current.Strikes).Msg("API back-pressure cleared")
	return nil
}

func (t *Tracker) store(ctx context.Context, state BackoffState) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
		return nil
	}

	var blocked int64
	if !state.BlockedUntil.IsZero() {
		blocked = state.BlockedUntil.UnixMilli()
	}

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyBlockedUntil, blocked, MaxBackoff)
	pipe.Set(ctx, RedisKeyStrikes, state.Strikes, MaxBackoff)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.UnixMilli(), MaxBackoff)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store back-off state in redis: %w", err)
	}
	return nil
}

// ShouldAllowRequest reports whether a request may be sent now.
// It returns false while the server's back-off is active. Otherwise it waits
// for a token bucket slot (and the throttle delay after repeated strikes)
// and returns true. A cancelled context is returned as an error.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.IsBlocked() {
		t.logger.Warn().
			Int("strikes", state.Strikes).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("API back-off active - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.config.ThrottleDelay > 0 {
		t.logger.Debug().Int("strikes", state.Strikes).Msg("Throttling request after repeated back-pressure")
		rateLimitThrottlesTotal.Inc()

		timer := time.NewTimer(t.config.ThrottleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("wait for rate limiter: %w", err)
	}
	rateLimitWaitSeconds.Observe(time.Since(start).Seconds())

	return true, nil
}

// ParseRetryAfter parses a Retry-After value given in seconds or as an HTTP
// date. Values in the past yield zero.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	if d := when.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

func redisInt(v interface{}) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
