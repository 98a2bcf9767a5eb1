// Package cache keeps recent scrape results so repeated requests for the same
// product page within a caller-chosen age skip the browser.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/pricescout/models"
)

// Entry is a cached scrape result with the time it was stored.
type Entry struct {
	Result   *models.ScrapeResult `json:"result"`
	StoredAt time.Time            `json:"stored_at"`
}

// Store is implemented by the in-memory and memcached caches.
type Store interface {
	// Get returns the entry for key if it is younger than maxAge. A
	// non-positive maxAge never hits.
	Get(key string, maxAge time.Duration) (*Entry, bool)

	// Set stores result under key.
	Set(key string, result *models.ScrapeResult)

	// Close stops background work.
	Close()
}

// Key derives the cache key for a product URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Memory is an in-memory Store. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	store      map[string]*Entry
	maxEntries int
	ttl        time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a Memory cache holding at most maxEntries results, each
// for at most ttl. A background goroutine evicts expired entries every
// 5 minutes.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Memory{
		store:      make(map[string]*Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *Memory) Get(key string, maxAge time.Duration) (*Entry, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	age := time.Since(e.StoredAt)
	if age > maxAge || (c.ttl > 0 && age > c.ttl) {
		return nil, false
	}
	return e, true
}

// Set stores result. At capacity one arbitrary entry is evicted.
func (c *Memory) Set(key string, result *models.ScrapeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		// Map iteration order is random.
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &Entry{Result: result, StoredAt: time.Now()}
}

// Len returns the number of entries held.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *Memory) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Memory) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *Memory) evictExpired(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	cutoff := now.Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.StoredAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
