// Package cache provides a Redis-backed response cache for conditional
// requests against the recruiting API.
//
// Entries are kept only for responses carrying a validator (ETag or
// Last-Modified). The cache never answers a request on its own: every page
// request still reaches the server, and a 304 Not Modified is answered from
// the stored body. Pagination offsets and next_offset values therefore always
// come from a live exchange.
//
// # Basic Usage
//
//	manager := cache.NewManager(redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	}))
//
//	key := cache.CacheKey{
//		Endpoint:    "/jobs/list/",
//		QueryParams: url.Values{"limit": {"12"}, "offset": {"0"}},
//		Principal:   "a@x.com",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// plain request
//	} else if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// After a successful mutation (delete, status change) the list endpoint is
// purged:
//
//	_, _ = manager.Purge(ctx, "/jobs/list/")
//
// # Metrics
//
//   - recruit_cache_hits_total{layer="redis"}
//   - recruit_cache_misses_total
//   - recruit_cache_entry_size_bytes
//   - recruit_conditional_requests_total
//   - recruit_304_responses_total
//   - recruit_cache_purged_total
//   - recruit_cache_errors_total{operation}
package cache
