package pagination

import (
	"sync"
	"testing"
)

func TestCursor_StartsAtZero(t *testing.T) {
	c := NewCursor()

	next, ok := c.Load()
	if !ok || next != 0 {
		t.Errorf("Load() = (%d, %v), want (0, true)", next, ok)
	}
	if !c.HasMore() {
		t.Error("HasMore() = false, want true")
	}
}

func TestCursor_StoreAndExhaust(t *testing.T) {
	c := NewCursor()

	offset := 12
	c.Store(&offset)
	offset = 99 // the cursor keeps its own copy

	if next, ok := c.Load(); !ok || next != 12 {
		t.Errorf("Load() = (%d, %v), want (12, true)", next, ok)
	}

	c.Store(nil)
	if _, ok := c.Load(); ok {
		t.Error("Load() ok = true after storing nil")
	}
	if c.HasMore() {
		t.Error("HasMore() = true after storing nil")
	}

	c.Reset()
	if next, ok := c.Load(); !ok || next != 0 {
		t.Errorf("after Reset Load() = (%d, %v), want (0, true)", next, ok)
	}
}

func TestCursor_Retreat(t *testing.T) {
	c := NewCursor()

	c.Store(intPtr(12))
	c.Retreat(1)
	if next, ok := c.Load(); !ok || next != 11 {
		t.Errorf("Load() = (%d, %v), want (11, true)", next, ok)
	}

	c.Reset()
	c.Retreat(1)
	if next, _ := c.Load(); next != 0 {
		t.Errorf("Load() = %d, want 0 (no negative offsets)", next)
	}

	c.Store(nil)
	c.Retreat(1)
	if c.HasMore() {
		t.Error("Retreat revived an exhausted cursor")
	}
}

func TestCursor_ConcurrentAccess(t *testing.T) {
	c := NewCursor()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			c.Store(&v)
		}(i)
		go func() {
			defer wg.Done()
			c.Load()
		}()
	}
	wg.Wait()

	if !c.HasMore() {
		t.Error("HasMore() = false after storing offsets")
	}
}
