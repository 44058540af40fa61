// Package namecache resolves item display names with a process-local cache.
// Entries live for the process lifetime and are never invalidated; failed
// lookups are not cached.
package namecache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type LookupFunc func(ctx context.Context, itemID string) (string, error)

type Cache struct {
	lookup LookupFunc
	group  singleflight.Group

	mu    sync.RWMutex
	names map[string]string
}

func New(lookup LookupFunc) *Cache {
	return &Cache{lookup: lookup, names: make(map[string]string)}
}

// Cached returns the name without performing a lookup.
func (c *Cache) Cached(itemID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[itemID]
	return name, ok
}

// Resolve returns the cached name or looks it up. Concurrent calls for the
// same id share one lookup.
func (c *Cache) Resolve(ctx context.Context, itemID string) (string, error) {
	if name, ok := c.Cached(itemID); ok {
		return name, nil
	}
	v, err, _ := c.group.Do(itemID, func() (any, error) {
		if name, ok := c.Cached(itemID); ok {
			return name, nil
		}
		name, err := c.lookup(ctx, itemID)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.names[itemID] = name
		c.mu.Unlock()
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
