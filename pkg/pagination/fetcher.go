package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoMorePages is returned by a next-page fetch once the cursor is exhausted.
	// No request is issued.
	ErrNoMorePages = errors.New("no more pages")

	// ErrFetchInProgress is returned when a fetch from the same trigger is
	// already in flight. No request is issued.
	ErrFetchInProgress = errors.New("fetch already in progress")

	// ErrStaleResponse is returned when a page arrives after the list was
	// reset. The page is discarded.
	ErrStaleResponse = errors.New("stale page response discarded")
)

// Sink receives the pages accepted by a Fetcher.
// Both methods are called with the fetcher's lock held, so they must not
// call back into the fetcher.
type Sink[T Item] interface {
	// ApplyPage merges a page; isInitial replaces what is held.
	ApplyPage(isInitial bool, items []T)
	// ResetPages drops everything held.
	ResetPages()
}

// FetcherConfig holds List Fetcher settings.
type FetcherConfig struct {
	// Name labels logs and metrics (e.g. "jobs").
	Name string

	// PageSize is the limit sent with every page request.
	PageSize int

	// Timeout bounds a single page request. Zero disables it.
	Timeout time.Duration
}

// DefaultPageSize matches the page size of the list views.
const DefaultPageSize = 12

// Fetcher issues page requests one at a time and feeds accepted pages to a Sink.
type Fetcher[T Item] struct {
	source Source[T]
	cursor *Cursor
	sink   Sink[T]
	config FetcherConfig
	logger zerolog.Logger

	mu           sync.Mutex
	gen          uint64
	filter       string
	loading      bool
	fetchingMore bool
}

// NewFetcher creates a fetcher positioned at offset 0 with no filter.
func NewFetcher[T Item](source Source[T], cursor *Cursor, sink Sink[T], cfg FetcherConfig) *Fetcher[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cursor == nil {
		cursor = NewCursor()
	}

	return &Fetcher[T]{
		source: source,
		cursor: cursor,
		sink:   sink,
		config: cfg,
		logger: log.With().Str("component", "list-fetcher").Str("list", cfg.Name).Logger(),
	}
}

// Reset switches to a new filter: the cursor goes back to 0, the sink is
// cleared and any in-flight response is invalidated.
func (f *Fetcher[T]) Reset(filter string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.filter = filter
	f.loading = false
	f.fetchingMore = false
	f.cursor.Reset()
	if f.sink != nil {
		f.sink.ResetPages()
	}

	f.logger.Debug().Str("filter", filter).Uint64("generation", f.gen).Msg("List reset")
}

// Invalidate discards whatever is in flight without touching the cursor or
// the sink.
func (f *Fetcher[T]) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.loading = false
	f.fetchingMore = false
}

// ItemRemoved accounts for a fetched item deleted server-side: every later
// item moved up one position, so the cursor moves back by one. A next-page
// fetch in flight asked for the old offset and is discarded when it lands.
// While an initial fetch is in flight nothing changes; it sets the cursor.
func (f *Fetcher[T]) ItemRemoved() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loading {
		return
	}
	if f.fetchingMore {
		f.gen++
		f.fetchingMore = false
	}
	f.cursor.Retreat(1)
}

// Filter returns the active filter.
func (f *Fetcher[T]) Filter() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter
}

// Busy reports whether an initial or a next-page fetch is in flight.
func (f *Fetcher[T]) Busy() (loading, fetchingMore bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading, f.fetchingMore
}

// Fetching reports whether any fetch is in flight.
func (f *Fetcher[T]) Fetching() bool {
	loading, more := f.Busy()
	return loading || more
}

// HasMore reports whether the cursor still points at a page.
func (f *Fetcher[T]) HasMore() bool {
	return f.cursor.HasMore()
}

// FetchPage requests one page.
//
// An initial fetch requests offset 0 and replaces the held lists; it starts a
// new generation, so a next-page fetch still in flight is discarded when it
// lands. A next-page fetch requests the cursor's offset and is refused while
// any fetch is in flight or once the cursor is exhausted.
//
// On success the cursor takes the response's next offset and the sink gets
// the results. On failure the cursor is left alone so a retry asks for the
// same page. The in-flight flag is cleared in both cases.
func (f *Fetcher[T]) FetchPage(ctx context.Context, isInitial bool) (*PageResponse[T], error) {
	kind := fetchKind(isInitial)

	f.mu.Lock()
	offset := 0
	if isInitial {
		if f.loading {
			f.mu.Unlock()
			pageFetchesTotal.WithLabelValues(f.config.Name, kind, outcomeSkipped).Inc()
			return nil, ErrFetchInProgress
		}
		f.gen++
		f.loading = true
		f.fetchingMore = false
	} else {
		if f.loading || f.fetchingMore {
			f.mu.Unlock()
			pageFetchesTotal.WithLabelValues(f.config.Name, kind, outcomeSkipped).Inc()
			return nil, ErrFetchInProgress
		}
		next, ok := f.cursor.Load()
		if !ok {
			f.mu.Unlock()
			pageFetchesTotal.WithLabelValues(f.config.Name, kind, outcomeNoMore).Inc()
			return nil, ErrNoMorePages
		}
		offset = next
		f.fetchingMore = true
	}
	gen := f.gen
	req := PageRequest{Limit: f.config.PageSize, Offset: offset, Filter: f.filter}
	f.mu.Unlock()

	f.logger.Debug().
		Str("kind", kind).
		Int("offset", req.Offset).
		Int("limit", req.Limit).
		Str("filter", req.Filter).
		Msg("Fetching page")

	page, err := f.list(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.gen {
		pageFetchesTotal.WithLabelValues(f.config.Name, kind, outcomeStale).Inc()
		f.logger.Debug().Int("offset", req.Offset).Msg("Discarding page from a previous generation")
		return nil, ErrStaleResponse
	}

	if isInitial {
		f.loading = false
	} else {
		f.fetchingMore = false
	}

	if err != nil {
		pageFetchesTotal.WithLabelValues(f.config.Name, kind, outcomeError).Inc()
		f.logger.Warn().
			Err(err).
			Str("kind", kind).
			Int("offset", req.Offset).
			Msg("Page fetch failed")
		return nil, fmt.Errorf("fetch %s page at offset %d: %w", f.config.Name, req.Offset, err)
	}

	f.cursor.Store(page.NextOffset)
	if f.sink != nil {
		f.sink.ApplyPage(isInitial, page.Results)
	}

	pageFetchesTotal.WithLabelValues(f.config.Name, kind, outcomeOK).Inc()
	pageItemsReceived.WithLabelValues(f.config.Name).Add(float64(len(page.Results)))

	event := f.logger.Debug().
		Str("kind", kind).
		Int("offset", req.Offset).
		Int("results", len(page.Results))
	if page.NextOffset != nil {
		event = event.Int("next_offset", *page.NextOffset)
	}
	event.Bool("has_more", page.HasMore()).Msg("Page fetched")

	return &page, nil
}

func (f *Fetcher[T]) list(ctx context.Context, req PageRequest) (PageResponse[T], error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		pageFetchDuration.WithLabelValues(f.config.Name).Observe(time.Since(start).Seconds())
	}()

	return f.source.List(ctx, req)
}
