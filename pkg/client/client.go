// Package client provides the HTTP client for the recruiting API with rate
// limiting, conditional-request caching, retries and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/recruit-client/pkg/cache"
	"github.com/Sternrassler/recruit-client/pkg/ratelimit"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recruit_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recruit_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recruit_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

const (
	// HeaderRequestID carries the per-request correlation ID.
	HeaderRequestID = "X-Request-ID"

	// SessionCookieName is the API's session cookie.
	SessionCookieName = "sessionid"

	// maxErrorBody bounds how much of an error response is kept as message.
	maxErrorBody = 4 << 10
)

// Client is the recruiting API client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger

	mu        sync.RWMutex
	principal string
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API (e.g. "https://recruit.example.com/api").
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// SessionID seeds the session cookie. Empty leaves the jar empty.
	SessionID string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Redis enables the response cache and shares back-off state between
	// instances. Optional.
	Redis *redis.Client

	// CacheRetention is how long a validated response is kept for revalidation.
	CacheRetention time.Duration

	// Rate Limiting
	RateLimit float64 // Requests per second, 0 = unlimited
	Burst     int

	// Retry
	MaxRetries     int // Retries after the first attempt
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	retry := DefaultRetryConfig()
	limits := ratelimit.DefaultConfig()
	return Config{
		BaseURL:        baseURL,
		UserAgent:      userAgent,
		Timeout:        30 * time.Second,
		CacheRetention: cache.DefaultRetention,
		RateLimit:      limits.RequestsPerSecond,
		Burst:          limits.Burst,
		MaxRetries:     retry.MaxAttempts - 1,
		InitialBackoff: retry.InitialBackoff,
		MaxBackoff:     retry.MaxBackoff,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url has no host (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheRetention <= 0 {
		cfg.CacheRetention = cache.DefaultRetention
	}

	logger := log.With().Str("component", "api-client").Logger()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if cfg.SessionID != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: SessionCookieName, Value: cfg.SessionID, Path: "/"}})
	}

	rateLimiter := ratelimit.NewTracker(cfg.Redis, ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit,
		Burst:             cfg.Burst,
		DefaultBackoff:    cfg.InitialBackoff,
		ThrottleDelay:     ratelimit.DefaultConfig().ThrottleDelay,
	}, logger)

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		baseURL:     base,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		config:      cfg,
		logger:      logger,
	}, nil
}

// SetPrincipal records the user requests are made for. Cached responses are
// keyed by it.
func (c *Client) SetPrincipal(principal string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = principal
}

// Principal returns the user requests are made for.
func (c *Client) Principal() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal
}

// Do performs an HTTP request with rate limiting, caching, retries and error
// classification. Only GET, HEAD and OPTIONS requests are retried. Any non-2xx outcome (other than a 304 answered from the
// cache) is returned as an *APIError; the response is only returned on success.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(HeaderRequestID, requestID)
	}
	logger := c.logger.With().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("request_id", requestID).
		Logger()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Rate Limit
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}
		logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		logger.Warn().Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, fmt.Errorf("%w: %s %s", ErrThrottled, req.Method, req.URL.Path)
	}

	// Step 2: Check Cache
	cacheKey := cache.CacheKey{
		Endpoint:    req.URL.Path,
		QueryParams: req.URL.Query(),
		Principal:   c.Principal(),
	}
	useCache := c.cache != nil && req.Method == http.MethodGet

	var cachedEntry *cache.CacheEntry
	if useCache {
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	// Step 3: Make Conditional Request if cache hit
	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		logger.Debug().Str("etag", cachedEntry.ETag).Msg("Making conditional request")
	}

	// Step 4: Set headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Step 5: Execute HTTP Request with Retry Logic
	logger.Debug().Msg("Executing API request")

	var resp *http.Response
	attempt := 0
	send := func() error {
		attempt++
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)
		if reqErr != nil {
			resp = nil
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			logger.Warn().Err(reqErr).Int("attempt", attempt).Msg("HTTP request failed")
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        reqErr,
			}
		}

		if err := c.rateLimiter.UpdateFromResponse(ctx, resp); err != nil {
			logger.Warn().Err(err).Msg("Failed to update rate limit state")
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode < 400 {
			return nil
		}

		apiErr := responseError(resp)
		resp = nil
		errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
		logger.Warn().
			Int("status", apiErr.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Int("attempt", attempt).
			Msg("API request error")
		return apiErr
	}

	var retryErr error
	if retryable(req.Method) {
		retryErr = retryWithBackoff(ctx, c.retryConfig(), send, classifyError)
	} else {
		retryErr = send()
	}
	if retryErr != nil {
		return nil, retryErr
	}

	// Step 6: Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		logger.Debug().Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		if err := c.cache.Refresh(ctx, cacheKey, c.config.CacheRetention); err != nil {
			logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	// Step 7: Update Cache on success
	if useCache && cache.IsCacheable(resp) {
		entry, err := cache.ResponseToEntry(resp, c.config.CacheRetention)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			logger.Debug().Dur("ttl", entry.TTL()).Msg("Cached response")
		}
	}

	return resp, nil
}

// retryable reports whether a failed request may be sent again. Mutations
// are sent once: the server may have applied one whose answer was lost.
func retryable(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func (c *Client) retryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = c.config.MaxRetries + 1
	if c.config.InitialBackoff > 0 {
		cfg.InitialBackoff = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		cfg.MaxBackoff = c.config.MaxBackoff
	}
	return cfg
}

// responseError consumes an error response into an *APIError.
func responseError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: classifyStatus(resp.StatusCode),
		Message:    errorMessage(resp.Status, body),
	}
	if wait, ok := ratelimit.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
		apiErr.RetryAfter = wait
	}
	return apiErr
}

// errorMessage prefers the API's {"error": "..."} or {"detail": "..."} body.
func errorMessage(status string, body []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "":
			return payload.Error
		case payload.Detail != "":
			return payload.Detail
		}
	}
	return status
}

// URL resolves path against the base URL. The trailing slash of path is kept.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Get performs a GET request against an API path.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// GetBytes performs a GET request and returns the response body.
func (c *Client) GetBytes(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Send performs a request with an optional JSON body and returns the
// response body. A nil payload sends no body.
func (c *Client) Send(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, nil), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Invalidate drops every cached response of an API path, e.g. after a
// mutation changed the list it serves.
func (c *Client) Invalidate(ctx context.Context, path string) error {
	if c.cache == nil {
		return nil
	}
	removed, err := c.cache.Purge(ctx, path)
	if err != nil {
		return err
	}
	c.logger.Debug().Str("endpoint", path).Int("removed", removed).Msg("Cache invalidated")
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing). The cookie jar is
// carried over when the new client has none.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client.Jar == nil {
		client.Jar = c.httpClient.Jar
	}
	c.httpClient = client
}

// GetCache returns the cache manager, nil without Redis.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// endpointLabel replaces identifier segments so metric labels stay bounded:
// /jobs/delete/42/ becomes /jobs/delete/:id/.
func endpointLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = ":id"
			continue
		}
		if _, err := uuid.Parse(seg); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
