package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCountLimit is the page size of the unbounded count request.
const DefaultCountLimit = 1000

// CountPrefetcher computes true per-bucket totals with a single large
// request, independent of the paginated lists. It keeps counts only.
type CountPrefetcher[T Item] struct {
	source Source[T]
	rule   func(Identity) Rule[T]
	names  []string
	limit  int
	name   string
	logger zerolog.Logger

	mu       sync.Mutex
	done     bool
	identity Identity
	counts   map[string]int
}

// NewCountPrefetcher creates a prefetcher. limit <= 0 uses DefaultCountLimit.
func NewCountPrefetcher[T Item](name string, source Source[T], rule func(Identity) Rule[T], limit int, names ...string) *CountPrefetcher[T] {
	if limit <= 0 {
		limit = DefaultCountLimit
	}
	return &CountPrefetcher[T]{
		source: source,
		rule:   rule,
		names:  names,
		limit:  limit,
		name:   name,
		logger: log.With().Str("component", "count-prefetcher").Str("list", name).Logger(),
	}
}

// Run fetches and classifies the whole, unfiltered collection for identity.
// It issues no request when counts for the same identity are already held.
// A failed run leaves previous counts in place and may be retried.
func (p *CountPrefetcher[T]) Run(ctx context.Context, identity Identity) (map[string]int, error) {
	p.mu.Lock()
	if p.done && p.identity.Equal(identity) {
		counts := copyCounts(p.counts)
		p.mu.Unlock()
		return counts, nil
	}
	p.mu.Unlock()

	page, err := p.source.List(ctx, PageRequest{Limit: p.limit, Offset: 0})
	if err != nil {
		pageFetchesTotal.WithLabelValues(p.name, kindCount, outcomeError).Inc()
		p.logger.Warn().Err(err).Msg("Count prefetch failed")
		return nil, fmt.Errorf("prefetch %s counts: %w", p.name, err)
	}
	pageFetchesTotal.WithLabelValues(p.name, kindCount, outcomeOK).Inc()

	partitioner := NewPartitioner(p.rule(identity), p.names...)
	counts := partitioner.Partition(page.Results).Counts()

	p.mu.Lock()
	p.done = true
	p.identity = identity
	p.counts = counts
	p.mu.Unlock()

	p.logger.Debug().
		Int("items", len(page.Results)).
		Interface("counts", counts).
		Msg("Counts prefetched")

	return copyCounts(counts), nil
}

// Counts returns the last computed counts, or nil before the first success.
func (p *CountPrefetcher[T]) Counts() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyCounts(p.counts)
}

// Adjust adds delta to the held total of bucket, e.g. -1 after an item was
// deleted. Totals never drop below 0; nothing happens before the first
// successful run.
func (p *CountPrefetcher[T]) Adjust(bucket string, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.counts == nil {
		return
	}
	n := p.counts[bucket] + delta
	if n < 0 {
		n = 0
	}
	p.counts[bucket] = n
}

func copyCounts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
