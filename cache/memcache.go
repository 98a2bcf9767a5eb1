package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/use-agent/pricescout/models"
)

const keyPrefix = "pricescout:scrape:"

// Memcache is a Store backed by memcached, shared between instances.
type Memcache struct {
	client *memcache.Client
	ttl    time.Duration
}

// NewMemcache creates a memcached Store. Nothing is dialled until first use.
func NewMemcache(serverAddr string, ttl time.Duration) *Memcache {
	return &Memcache{
		client: memcache.New(serverAddr),
		ttl:    ttl,
	}
}

// Ping checks that memcached is reachable.
func (m *Memcache) Ping() error {
	return m.client.Ping()
}

func (m *Memcache) Get(key string, maxAge time.Duration) (*Entry, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	item, err := m.client.Get(keyPrefix + key)
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.Warn("memcache get failed", "error", err)
		}
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(item.Value, &e); err != nil {
		slog.Warn("memcache entry undecodable, ignoring", "error", err)
		return nil, false
	}
	if time.Since(e.StoredAt) > maxAge {
		return nil, false
	}
	return &e, true
}

// Set stores result. Failures are logged; the cache is best-effort.
func (m *Memcache) Set(key string, result *models.ScrapeResult) {
	value, err := json.Marshal(Entry{Result: result, StoredAt: time.Now()})
	if err != nil {
		slog.Warn("memcache encode failed", "error", err)
		return
	}
	if err := m.client.Set(&memcache.Item{
		Key:        keyPrefix + key,
		Value:      value,
		Expiration: int32(m.ttl.Seconds()),
	}); err != nil {
		slog.Warn("memcache set failed", "error", err)
	}
}

// Delete removes key.
func (m *Memcache) Delete(key string) error {
	return m.client.Delete(keyPrefix + key)
}

// Close is a no-op; the client's idle connections are reaped on their own.
func (m *Memcache) Close() {}
