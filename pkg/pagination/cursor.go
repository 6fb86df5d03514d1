package pagination

import "sync"

// Cursor holds the offset to request next.
//
// It is a plain mutable cell: a Store is visible to the very next Load from
// any goroutine, without waiting on any view refresh. A nil offset means the
// list is exhausted.
type Cursor struct {
	mu   sync.Mutex
	next *int
}

// NewCursor returns a cursor positioned at offset 0.
func NewCursor() *Cursor {
	c := &Cursor{}
	c.Reset()
	return c
}

// Load returns the next offset and false when the list is exhausted.
func (c *Cursor) Load() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next == nil {
		return 0, false
	}
	return *c.next, true
}

// Store replaces the next offset. nil marks the list as exhausted.
func (c *Cursor) Store(next *int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if next == nil {
		c.next = nil
		return
	}
	v := *next
	c.next = &v
}

// Reset positions the cursor at offset 0.
func (c *Cursor) Reset() {
	zero := 0
	c.Store(&zero)
}

// Retreat moves the offset back by n, not below 0. An exhausted cursor
// stays exhausted.
func (c *Cursor) Retreat(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next == nil {
		return
	}
	v := *c.next - n
	if v < 0 {
		v = 0
	}
	c.next = &v
}

// HasMore reports whether another page can be requested.
func (c *Cursor) HasMore() bool {
	_, ok := c.Load()
	return ok
}
