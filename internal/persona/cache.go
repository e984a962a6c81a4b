package persona

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Compile-time interface check.
var _ Store = (*Cache)(nil)

// Cache wraps a Store with an in-process TTL cache. Concurrent lookups for
// the same persona are collapsed to a single backing call.
//
// Personas are immutable within a session, so a generous TTL is safe; entries
// are refreshed lazily after expiry.
type Cache struct {
	backing Store
	ttl     time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	persona *Persona
	fetched time.Time
}

// NewCache creates a Cache over backing with the given entry TTL.
// A non-positive ttl disables expiry.
func NewCache(backing Store, ttl time.Duration) *Cache {
	return &Cache{
		backing: backing,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Lookup implements Store. Misses and expired entries hit the backing store;
// in-flight lookups for the same ID are shared.
func (c *Cache) Lookup(ctx context.Context, personaID string) (*Persona, error) {
	c.mu.RLock()
	entry, ok := c.entries[personaID]
	c.mu.RUnlock()
	if ok && (c.ttl <= 0 || time.Since(entry.fetched) < c.ttl) {
		return entry.persona, nil
	}

	v, err, _ := c.group.Do(personaID, func() (any, error) {
		p, err := c.backing.Lookup(ctx, personaID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[personaID] = cacheEntry{persona: p, fetched: time.Now()}
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Persona), nil
}

// Invalidate drops the cached entry for personaID, if any.
func (c *Cache) Invalidate(personaID string) {
	c.mu.Lock()
	delete(c.entries, personaID)
	c.mu.Unlock()
}

// Len returns the number of cached entries. Thread-safe.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
