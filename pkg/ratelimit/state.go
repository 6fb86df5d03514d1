// Package ratelimit gates requests to the recruiting API.
// It combines a client-side token bucket with the server's back-pressure
// signals (429 Too Many Requests and 503 Service Unavailable with
// Retry-After), which are shared across client instances through Redis.
package ratelimit

import (
	"time"
)

// Redis keys for back-off state storage.
const (
	RedisKeyBlockedUntil = "recruit:rate_limit:blocked_until"
	RedisKeyStrikes      = "recruit:rate_limit:strikes"
	RedisKeyLastUpdate   = "recruit:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// StrikesWarning applies throttling once this many consecutive
	// back-pressure responses were received.
	StrikesWarning = 2

	// MaxBackoff caps the block derived from a single response.
	MaxBackoff = 5 * time.Minute
)

// BackoffState is the server-imposed back-off shared by all clients.
type BackoffState struct {
	// BlockedUntil is when requests may resume. Zero when not blocked.
	BlockedUntil time.Time `json:"blocked_until"`

	// Strikes counts consecutive 429/503 responses; a success resets it.
	Strikes int `json:"strikes"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state is older than maxAge.
func (s *BackoffState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsBlocked reports whether requests must wait for the server.
func (s *BackoffState) IsBlocked() bool {
	return time.Now().Before(s.BlockedUntil)
}

// NeedsThrottling reports whether requests should be slowed down even
// though the block has lifted.
func (s *BackoffState) NeedsThrottling() bool {
	return s.Strikes >= StrikesWarning && !s.IsBlocked()
}

// TimeUntilReset returns the remaining block.
// Returns 0 if the block has already lifted.
func (s *BackoffState) TimeUntilReset() time.Duration {
	d := time.Until(s.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}
