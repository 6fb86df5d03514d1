package pagination

// Bucket names used by the ownership split.
const (
	BucketMine   = "mine"
	BucketOthers = "others"
	BucketAll    = "all"
)

// Buckets maps a bucket name to its ordered items.
type Buckets[T Item] map[string][]T

// Clone returns a copy whose slices do not alias the receiver.
func (b Buckets[T]) Clone() Buckets[T] {
	out := make(Buckets[T], len(b))
	for name, items := range b {
		out[name] = append([]T(nil), items...)
	}
	return out
}

// Counts returns the number of items per bucket.
func (b Buckets[T]) Counts() map[string]int {
	out := make(map[string]int, len(b))
	for name, items := range b {
		out[name] = len(items)
	}
	return out
}

// Rule names the bucket an item belongs to.
type Rule[T Item] func(item T) string

// OwnershipRule routes an item to BucketMine iff both its owner email and
// owner name match the identity after trimming and case folding. A missing
// value on either side routes to BucketOthers.
func OwnershipRule[T Owned](identity Identity) Rule[T] {
	return func(item T) string {
		if safeMatch(item.OwnerEmail(), identity.Email) && safeMatch(item.OwnerName(), identity.Name) {
			return BucketMine
		}
		return BucketOthers
	}
}

// SingleBucket routes every item to the named bucket.
func SingleBucket[T Item](name string) Rule[T] {
	return func(T) string { return name }
}

func safeMatch(a, b string) bool {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return false
	}
	return a == b
}

// Partitioner classifies items into a fixed set of named buckets.
type Partitioner[T Item] struct {
	rule  Rule[T]
	names []string
}

// NewPartitioner creates a partitioner. Every name in names is always present
// in the buckets it produces; items routed to an unlisted name still get a
// bucket of their own.
func NewPartitioner[T Item](rule Rule[T], names ...string) *Partitioner[T] {
	return &Partitioner[T]{rule: rule, names: names}
}

// Classify returns the bucket item belongs to.
func (p *Partitioner[T]) Classify(item T) string {
	return p.rule(item)
}

// Empty returns buckets with every configured name and no items.
func (p *Partitioner[T]) Empty() Buckets[T] {
	out := make(Buckets[T], len(p.names))
	for _, name := range p.names {
		out[name] = []T{}
	}
	return out
}

// Partition classifies items in order, dropping repeated identifiers.
func (p *Partitioner[T]) Partition(items []T) Buckets[T] {
	return p.Merge(p.Empty(), true, items)
}

// Merge adds items to dst. An initial merge replaces every bucket; otherwise
// items are appended unless their identifier is already held by the bucket.
// dst is modified and returned.
func (p *Partitioner[T]) Merge(dst Buckets[T], isInitial bool, items []T) Buckets[T] {
	if dst == nil || isInitial {
		dst = p.Empty()
	}

	seen := make(map[string]map[ID]struct{}, len(dst))
	for name, held := range dst {
		ids := make(map[ID]struct{}, len(held))
		for _, it := range held {
			ids[it.ItemID()] = struct{}{}
		}
		seen[name] = ids
	}

	for _, it := range items {
		name := p.Classify(it)
		ids, ok := seen[name]
		if !ok {
			ids = make(map[ID]struct{})
			seen[name] = ids
		}
		if _, dup := ids[it.ItemID()]; dup {
			continue
		}
		ids[it.ItemID()] = struct{}{}
		dst[name] = append(dst[name], it)
	}
	return dst
}
