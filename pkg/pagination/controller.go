package pagination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds controller configuration.
type Config[T Item] struct {
	// Name labels logs and metrics (e.g. "jobs", "resumes").
	Name string

	// PageSize is the limit of every page request (default 12).
	PageSize int

	// CountLimit is the limit of the count prefetch request (default 1000).
	CountLimit int

	// DisableCounts turns the count prefetch off.
	DisableCounts bool

	// FetchTimeout bounds a single page request. Zero disables it.
	FetchTimeout time.Duration

	// Rule builds the classification rule for the current identity.
	// Nil puts every item in BucketAll.
	Rule func(Identity) Rule[T]

	// Buckets lists the bucket names that always exist in a snapshot.
	Buckets []string
}

// OwnershipConfig returns the mine/others configuration for owned items.
func OwnershipConfig[T Owned](name string) Config[T] {
	return Config[T]{
		Name:       name,
		PageSize:   DefaultPageSize,
		CountLimit: DefaultCountLimit,
		Rule:       OwnershipRule[T],
		Buckets:    []string{BucketMine, BucketOthers},
	}
}

// SingleBucketConfig returns a configuration that keeps one list and no counts.
func SingleBucketConfig[T Item](name string) Config[T] {
	return Config[T]{
		Name:          name,
		PageSize:      DefaultPageSize,
		DisableCounts: true,
		Rule: func(Identity) Rule[T] {
			return SingleBucket[T](BucketAll)
		},
		Buckets: []string{BucketAll},
	}
}

// View is a point-in-time copy of a controller's state.
type View[T Item] struct {
	Name         string         `json:"name"`
	Filter       string         `json:"filter,omitempty"`
	Items        []T            `json:"items"`
	Buckets      Buckets[T]     `json:"buckets"`
	Totals       map[string]int `json:"totals,omitempty"`
	HasMore      bool           `json:"has_more"`
	Loading      bool           `json:"loading"`
	FetchingMore bool           `json:"fetching_more"`
	Sentinel     string         `json:"sentinel"`
	Error        string         `json:"error,omitempty"`
	// ErrorPersistent marks an initial-fetch failure: nothing could be shown.
	ErrorPersistent bool `json:"error_persistent,omitempty"`

	Err error `json:"-"`
}

// Controller drives one paginated, partitioned list: it owns the cursor,
// the accumulated items and buckets, the scroll sentinel and the count
// prefetch. All methods are safe for concurrent use.
type Controller[T Item] struct {
	config   Config[T]
	cursor   *Cursor
	fetcher  *Fetcher[T]
	sentinel *Sentinel
	counts   *CountPrefetcher[T]
	logger   zerolog.Logger

	mu            sync.RWMutex
	identity      Identity
	partitioner   *Partitioner[T]
	items         []T
	held          map[ID]struct{}
	buckets       Buckets[T]
	err           error
	errPersistent bool
	closed        bool
}

// NewController creates a controller over source. Nothing is fetched until
// Mount is called.
func NewController[T Item](source Source[T], cfg Config[T]) *Controller[T] {
	if cfg.Rule == nil {
		cfg.Rule = func(Identity) Rule[T] { return SingleBucket[T](BucketAll) }
		cfg.Buckets = []string{BucketAll}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	c := &Controller[T]{
		config: cfg,
		cursor: NewCursor(),
		held:   make(map[ID]struct{}),
		logger: log.With().Str("component", "list-controller").Str("list", cfg.Name).Logger(),
	}
	c.partitioner = NewPartitioner(cfg.Rule(Identity{}), cfg.Buckets...)
	c.buckets = c.partitioner.Empty()

	c.fetcher = NewFetcher[T](source, c.cursor, c, FetcherConfig{
		Name:     cfg.Name,
		PageSize: cfg.PageSize,
		Timeout:  cfg.FetchTimeout,
	})
	c.sentinel = NewSentinel(cfg.Name, c.readyForMore, func(ctx context.Context) {
		_ = c.load(ctx, false)
	})
	if !cfg.DisableCounts {
		c.counts = NewCountPrefetcher(cfg.Name, source, cfg.Rule, cfg.CountLimit, cfg.Buckets...)
	}
	return c
}

// Mount performs the initial fetch.
func (c *Controller[T]) Mount(ctx context.Context) error {
	return c.load(ctx, true)
}

// SetFilter switches the active filter: the cursor goes back to 0, every
// list is cleared and the first page is requested again.
func (c *Controller[T]) SetFilter(ctx context.Context, filter string) error {
	if c.isClosed() {
		return nil
	}
	c.fetcher.Reset(filter)
	c.sentinel.Detach()
	return c.load(ctx, true)
}

// Filter returns the active filter.
func (c *Controller[T]) Filter() string {
	return c.fetcher.Filter()
}

// LoadMore requests the next page. It returns ErrNoMorePages or
// ErrFetchInProgress without a request when there is nothing to do.
func (c *Controller[T]) LoadMore(ctx context.Context) error {
	return c.load(ctx, false)
}

// Visible reports that the item id entered the viewport and returns whether
// a next-page fetch was started.
func (c *Controller[T]) Visible(id ID) bool {
	return c.sentinel.Visible(id)
}

// Wait blocks until a sentinel-triggered fetch has completed.
func (c *Controller[T]) Wait() {
	c.sentinel.Wait()
}

// SentinelState returns the scroll sentinel's state.
func (c *Controller[T]) SentinelState() SentinelState {
	return c.sentinel.State()
}

// HasMore reports whether another page exists.
func (c *Controller[T]) HasMore() bool {
	return c.fetcher.HasMore()
}

// SetIdentity records the current user. Held items are classified again
// for the new identity and, once per identity, the totals are prefetched.
func (c *Controller[T]) SetIdentity(ctx context.Context, identity Identity) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	changed := !c.identity.Equal(identity)
	c.identity = identity
	if changed {
		c.partitioner = NewPartitioner(c.config.Rule(identity), c.config.Buckets...)
		c.buckets = c.partitioner.Partition(c.items)
	}
	c.mu.Unlock()

	if changed {
		c.logger.Debug().Str("email", identity.Email).Msg("Identity updated, lists reclassified")
	}
	if c.counts == nil || !identity.Known() {
		return nil
	}

	if _, err := c.counts.Run(ctx, identity); err != nil {
		return err
	}
	return nil
}

// Identity returns the identity used for classification.
func (c *Controller[T]) Identity() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Remove drops an item deleted server-side from every list. The cursor moves
// back by one so the next page still starts right after the last held item,
// and the item's bucket total is lowered. It reports whether the item was
// held.
func (c *Controller[T]) Remove(id ID) bool {
	c.mu.Lock()
	if _, ok := c.held[id]; !ok {
		c.mu.Unlock()
		return false
	}
	var bucket string
	for _, it := range c.items {
		if it.ItemID() == id {
			bucket = c.partitioner.Classify(it)
			break
		}
	}
	delete(c.held, id)
	c.items = removeID(c.items, id)
	for name, items := range c.buckets {
		c.buckets[name] = removeID(items, id)
	}
	c.mu.Unlock()

	c.fetcher.ItemRemoved()
	if c.counts != nil {
		c.counts.Adjust(bucket, -1)
	}
	c.observeLast()
	return true
}

// Replace swaps the held item with the same identifier for item, keeping
// its position, and classifies it again. It reports whether the item was held.
func (c *Controller[T]) Replace(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := item.ItemID()
	if _, ok := c.held[id]; !ok {
		return false
	}
	for i := range c.items {
		if c.items[i].ItemID() == id {
			c.items[i] = item
			break
		}
	}
	c.buckets = c.partitioner.Partition(c.items)
	return true
}

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() View[T] {
	loading, more := c.fetcher.Busy()
	view := View[T]{
		Name:         c.config.Name,
		Filter:       c.fetcher.Filter(),
		HasMore:      c.fetcher.HasMore(),
		Loading:      loading,
		FetchingMore: more,
		Sentinel:     c.sentinel.State().String(),
	}
	if c.counts != nil {
		view.Totals = c.counts.Counts()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	view.Items = append([]T{}, c.items...)
	view.Buckets = c.buckets.Clone()
	if c.err != nil {
		view.Err = c.err
		view.Error = c.err.Error()
		view.ErrorPersistent = c.errPersistent
	}
	return view
}

// Close tears the controller down. A fetch still in flight is cancelled and
// its result discarded. Close is idempotent.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.fetcher.Invalidate()
	c.sentinel.Close()
	c.logger.Debug().Msg("List controller closed")
}

// ApplyPage implements Sink.
func (c *Controller[T]) ApplyPage(isInitial bool, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isInitial {
		c.items = nil
		c.held = make(map[ID]struct{}, len(items))
	}
	fresh := make([]T, 0, len(items))
	for _, it := range items {
		id := it.ItemID()
		if _, dup := c.held[id]; dup {
			continue
		}
		c.held[id] = struct{}{}
		fresh = append(fresh, it)
	}
	c.items = append(c.items, fresh...)
	c.buckets = c.partitioner.Merge(c.buckets, isInitial, fresh)
}

// ResetPages implements Sink.
func (c *Controller[T]) ResetPages() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.held = make(map[ID]struct{})
	c.buckets = c.partitioner.Empty()
	c.err = nil
	c.errPersistent = false
}

func (c *Controller[T]) load(ctx context.Context, isInitial bool) error {
	if c.isClosed() {
		return nil
	}

	_, err := c.fetcher.FetchPage(ctx, isInitial)

	if c.isClosed() {
		return nil
	}

	switch {
	case err == nil:
		c.clearError(isInitial)
	case errors.Is(err, ErrFetchInProgress), errors.Is(err, ErrNoMorePages), errors.Is(err, ErrStaleResponse):
		// Nothing happened; the error slot keeps its content.
	default:
		c.recordError(isInitial, err)
	}

	c.observeLast()
	return err
}

func (c *Controller[T]) recordError(isInitial bool, err error) {
	c.mu.Lock()
	c.err = err
	c.errPersistent = isInitial
	c.mu.Unlock()

	if isInitial {
		c.logger.Error().Err(err).Msg("Initial list fetch failed")
		return
	}
	c.logger.Warn().Err(err).Msg("Next page fetch failed, keeping displayed items")
}

func (c *Controller[T]) clearError(isInitial bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if isInitial || !c.errPersistent {
		c.err = nil
		c.errPersistent = false
	}
}

func (c *Controller[T]) observeLast() {
	c.mu.RLock()
	var last ID
	if n := len(c.items); n > 0 {
		last = c.items[n-1].ItemID()
	}
	c.mu.RUnlock()

	c.sentinel.Observe(last)
}

func (c *Controller[T]) readyForMore() bool {
	return !c.fetcher.Fetching() && c.fetcher.HasMore()
}

func (c *Controller[T]) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func removeID[T Item](items []T, id ID) []T {
	out := items[:0]
	for _, it := range items {
		if it.ItemID() != id {
			out = append(out, it)
		}
	}
	return out
}
