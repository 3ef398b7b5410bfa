package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/citecheck/internal/model"
)

// MemoryCache is the in-process tier: go-cache handles per-entry TTL and a
// recency list bounds the number of entries
type MemoryCache struct {
	cache    *gocache.Cache
	capacity int

	mu      sync.Mutex
	recency *list.List               // Front is most recently used
	entries map[string]*list.Element // key -> element holding the key
}

// NewMemoryCache creates a memory tier. A capacity <= 0 means unbounded.
func NewMemoryCache(defaultTTL time.Duration, capacity int) *MemoryCache {
	cleanup := defaultTTL
	if cleanup <= 0 || cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}
	return &MemoryCache{
		cache:    gocache.New(defaultTTL, cleanup),
		capacity: capacity,
		recency:  list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Name returns the tier name
func (c *MemoryCache) Name() string {
	return TierMemory
}

// Get retrieves a record
func (c *MemoryCache) Get(_ context.Context, key string) (model.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, found := c.cache.Get(key)
	if !found {
		c.forget(key)
		return model.CacheRecord{}, ErrMiss
	}
	if el, ok := c.entries[key]; ok {
		c.recency.MoveToFront(el)
	}
	return decode(val.([]byte))
}

// Set stores a record, evicting the least recently used entries when full
func (c *MemoryCache) Set(_ context.Context, key string, record model.CacheRecord) error {
	data, err := encode(record)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Set(key, data, gocache.DefaultExpiration)
	if el, ok := c.entries[key]; ok {
		c.recency.MoveToFront(el)
	} else {
		c.entries[key] = c.recency.PushFront(key)
	}

	for c.capacity > 0 && c.recency.Len() > c.capacity {
		oldest := c.recency.Back()
		evicted := oldest.Value.(string)
		c.cache.Delete(evicted)
		c.forget(evicted)
	}
	return nil
}

// Delete removes a record
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
	c.forget(key)
	return nil
}

// Clear removes all records
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.recency.Init()
	c.entries = make(map[string]*list.Element)
	return nil
}

// Len returns the number of tracked entries, including any that expired
// but have not been looked up since
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

// forget drops key from the recency list; callers hold mu
func (c *MemoryCache) forget(key string) {
	if el, ok := c.entries[key]; ok {
		c.recency.Remove(el)
		delete(c.entries, key)
	}
}
