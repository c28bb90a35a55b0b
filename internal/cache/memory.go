// Package cache provides the key-value backends carts are persisted to.
package cache

import (
	"context"
	"sync"
	"time"
)

// KV is an opaque blob store. Get reports found=false for missing or
// expired keys; that is not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type entry struct {
	value   []byte
	expires time.Time
}

type MemoryKV struct {
	mu    sync.RWMutex
	store map[string]entry
	now   func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		store: make(map[string]entry),
		now:   time.Now,
	}
}

func (c *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a copy of value. A zero ttl never expires.
func (c *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = e
	return nil
}

func (c *MemoryKV) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}
