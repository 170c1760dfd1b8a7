package cache

import (
	"context"
	"sync"
	"time"
)

// TTLCache is the in-process Cache with time-based expiration and LRU
// eviction under pressure. All access goes through a single lock, so
// readers always see complete entries.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]*ttlEntry
	maxEntries int

	hits   int64
	misses int64

	now    func() time.Time
	stopCh chan struct{}
}

type ttlEntry struct {
	entry    Entry
	expires  time.Time
	accessed time.Time
}

// NewTTLCache creates a TTL cache bounded to maxEntries and starts its
// expiry sweeper.
func NewTTLCache(maxEntries int) *TTLCache {
	c := &TTLCache{
		entries:    make(map[string]*ttlEntry),
		maxEntries: maxEntries,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the entry for key if present and fresh.
func (c *TTLCache) Get(_ context.Context, key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || c.now().After(e.expires) {
		c.misses++
		return Entry{}, false
	}
	e.accessed = c.now()
	c.hits++
	return e.entry, true
}

// Set stores payload under key for ttl. The later of two racing writes
// wins by lock acquisition order.
func (c *TTLCache) Set(_ context.Context, key Key, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}
	now := c.now()
	c.entries[key.String()] = &ttlEntry{
		entry:    Entry{Payload: payload, FetchedAt: now},
		expires:  now.Add(ttl),
		accessed: now,
	}
}

// Stats returns hit/miss counters since creation.
func (c *TTLCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Stop shuts down the sweeper goroutine.
func (c *TTLCache) Stop() {
	close(c.stopCh)
}

// evictLRU removes the least recently accessed entry. Caller holds the
// write lock.
func (c *TTLCache) evictLRU() {
	var oldestKey string
	oldest := c.now()
	for k, e := range c.entries {
		if e.accessed.Before(oldest) {
			oldest = e.accessed
			oldestKey = k
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *TTLCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *TTLCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
}

// MemoryPermanentMap is the in-process PermanentMap.
type MemoryPermanentMap struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryPermanentMap creates an empty identifier map.
func NewMemoryPermanentMap() *MemoryPermanentMap {
	return &MemoryPermanentMap{m: make(map[string]string)}
}

// Lookup returns the identifier mapped to key.
func (p *MemoryPermanentMap) Lookup(_ context.Context, key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.m[key]
	return id, ok
}

// PutIfAbsent maps key to id unless a prior writer won.
func (p *MemoryPermanentMap) PutIfAbsent(_ context.Context, key, id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.m[key]; ok {
		return existing, false
	}
	p.m[key] = id
	return id, true
}
