// Package snapshot is the bounded, TTL-tagged cache screens fall back to when
// a load fails. Entries are JSON snapshots of a screen's last good data, keyed
// per user and per screen dependency set.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one stored snapshot.
type Entry struct {
	Data      []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Store persists snapshot entries.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache is a typed view over a Store for one screen.
type Cache[T any] struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// NewCache creates a Cache whose keys are namespaced by prefix.
func NewCache[T any](store Store, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{store: store, prefix: prefix, ttl: ttl}
}

func (c *Cache[T]) key(k string) string { return c.prefix + ":" + k }

// Save stores v under key.
func (c *Cache[T]) Save(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.store.Put(ctx, c.key(key), data, c.ttl)
}

// Load returns the snapshot under key and when it was stored. ok is false on a
// miss, an expired entry, or an undecodable entry.
func (c *Cache[T]) Load(ctx context.Context, key string) (v T, storedAt time.Time, ok bool) {
	e, found, err := c.store.Get(ctx, c.key(key))
	if err != nil || !found {
		return v, time.Time{}, false
	}
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return v, time.Time{}, false
	}
	return v, e.StoredAt, true
}

// Forget drops the snapshot under key.
func (c *Cache[T]) Forget(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.key(key))
}
