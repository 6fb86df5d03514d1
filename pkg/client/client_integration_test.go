//go:build integration

package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/recruit-client/internal/testutil"
	"github.com/Sternrassler/recruit-client/pkg/cache"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_FullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.EnableETags(true)
	mock.SetJobs(
		testutil.JobRecord(1, "Go Engineer", "ada@example.com", "Ada", "Engineering"),
		testutil.JobRecord(2, "Recruiter", "grace@example.com", "Grace", "People"),
	)

	cfg := testConfig(mock.URL())
	cfg.Redis = redisClient
	c := newTestClient(t, cfg)
	c.SetPrincipal("ada@example.com")

	ctx := context.Background()
	query := url.Values{"limit": {"12"}, "offset": {"0"}}

	// First request: cache miss, stored with its ETag
	if _, err := c.GetBytes(ctx, "/jobs/list/", query); err != nil {
		t.Fatalf("first request error = %v", err)
	}

	// Second request: revalidated, answered from cache
	resp, err := c.Get(ctx, "/jobs/list/", query)
	if err != nil {
		t.Fatalf("second request error = %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(cache.HeaderCache) != "HIT" {
		t.Errorf("second response not served from cache")
	}

	// Another user never sees the first user's entry
	c.SetPrincipal("grace@example.com")
	if _, err := c.GetBytes(ctx, "/jobs/list/", query); err != nil {
		t.Fatalf("other principal request error = %v", err)
	}

	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("RequestCount = %d, want 3", got)
	}
	if got := mock.GetConditionalCount(); got != 1 {
		t.Errorf("ConditionalCount = %d, want 1", got)
	}

	// A mutation purges every user's entries of the list
	c.SetPrincipal("ada@example.com")
	if _, err := c.Send(ctx, http.MethodDelete, "/jobs/delete/2/", nil); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if err := c.Invalidate(ctx, "/jobs/list/"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	resp, err = c.Get(ctx, "/jobs/list/", query)
	if err != nil {
		t.Fatalf("post-delete request error = %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(cache.HeaderCache) == "HIT" {
		t.Error("list served from cache after invalidation")
	}
	if got := mock.GetConditionalCount(); got != 1 {
		t.Errorf("ConditionalCount after invalidation = %d, want 1", got)
	}
}

func TestIntegration_SharedBackoff(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.FailNext(testutil.MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "30"},
	})

	cfg := testConfig(mock.URL())
	cfg.Redis = redisClient
	cfg.MaxRetries = 0

	first := newTestClient(t, cfg)
	second := newTestClient(t, cfg)
	ctx := context.Background()

	if _, err := first.Get(ctx, "/resumes/", nil); err == nil {
		t.Fatal("expected 429 error")
	}

	_, err := second.Get(ctx, "/resumes/", nil)
	if !errors.Is(err, ErrThrottled) {
		t.Errorf("second client error = %v, want ErrThrottled", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("RequestCount = %d, want 1", got)
	}
}
