package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Cache holds one typed value under a fixed key of a Store.
type Cache[T any] struct {
	store Store
	key   string
}

// NewCache creates a typed cache for key.
func NewCache[T any](store Store, key string) *Cache[T] {
	return &Cache[T]{store: store, key: key}
}

// Key returns the store key of the cache.
func (c *Cache[T]) Key() string {
	return c.key
}

// Load returns the cached value. ok is false when nothing is stored.
// A value that no longer decodes is dropped and reported as absent.
func (c *Cache[T]) Load(ctx context.Context) (value T, ok bool, err error) {
	data, err := c.store.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return value, false, nil
		}
		return value, false, err
	}

	if err := json.Unmarshal(data, &value); err != nil {
		_ = c.store.Delete(ctx, c.key)
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

// Save replaces the cached value.
func (c *Cache[T]) Save(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	return c.store.Set(ctx, c.key, data)
}

// Clear removes the cached value.
func (c *Cache[T]) Clear(ctx context.Context) error {
	return c.store.Delete(ctx, c.key)
}
