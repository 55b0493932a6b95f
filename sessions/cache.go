package sessions

import (
	"sync"
	"time"
)

type cacheEntry struct {
	record    Record
	expiresAt time.Time
}

// Cache is a process-wide map of userId to session record with per-key
// atomic Get/Put/Invalidate. It is a lookup accelerator only: entries may
// vanish at any time (TTL, capacity pressure), so callers must always keep a
// non-cache fallback path.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	nowFunc    func() time.Time
}

// CacheOption modifies a Cache instance.
type CacheOption func(*Cache)

// WithCacheNowFunc sets the now time function (primarily for testing)
func WithCacheNowFunc(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.nowFunc = now
	}
}

// NewCache creates a Cache bounded by ttl and maxEntries. A ttl of zero
// means entries never age out; maxEntries of zero means unbounded.
func NewCache(ttl time.Duration, maxEntries int, options ...CacheOption) *Cache {
	c := &Cache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.ttl > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get returns the cached record for userID, if present and not aged out.
func (c *Cache) Get(userID string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[userID]
	if !found || c.expired(entry) {
		return Record{}, false
	}
	return entry.record, true
}

// Put stores record under userID, overwriting any previous entry.
func (c *Cache) Put(userID string, record Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[userID]; !exists {
			c.evictLocked()
		}
	}

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.nowFunc().Add(c.ttl)
	}
	c.entries[userID] = &cacheEntry{record: record, expiresAt: expiresAt}
}

// Invalidate removes the entry for userID. Removing an absent entry is a
// no-op.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Len reports the number of entries currently held, including aged-out
// entries not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(entry *cacheEntry) bool {
	return !entry.expiresAt.IsZero() && c.nowFunc().After(entry.expiresAt)
}

// evictLocked drops expired entries first; if none have expired, an
// arbitrary entry goes. The size bound is best-effort, not an LRU.
func (c *Cache) evictLocked() {
	for userID, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, userID)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}
	for userID := range c.entries {
		delete(c.entries, userID)
		return
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for userID, entry := range c.entries {
			if c.expired(entry) {
				delete(c.entries, userID)
			}
		}
		c.mu.Unlock()
	}
}
