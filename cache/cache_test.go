package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricescout/models"
)

func result(name string, current float64) *models.ScrapeResult {
	return &models.ScrapeResult{Name: name, CurrentPrice: &current, Currency: models.GBP}
}

func TestKey(t *testing.T) {
	a := Key("https://www.paulsmith.com/p/1")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("https://www.paulsmith.com/p/1"))
	assert.NotEqual(t, a, Key("https://www.paulsmith.com/p/2"))
}

func TestMemory_GetRespectsMaxAge(t *testing.T) {
	c := NewMemory(10, time.Hour)
	defer c.Close()

	c.Set("k", result("Scarf", 65))

	e, ok := c.Get("k", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "Scarf", e.Result.Name)

	_, ok = c.Get("k", 0)
	assert.False(t, ok, "zero max age never hits")

	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("k", time.Millisecond)
	assert.False(t, ok)

	_, ok = c.Get("missing", time.Minute)
	assert.False(t, ok)
}

func TestMemory_TTLCapsAge(t *testing.T) {
	c := NewMemory(10, time.Millisecond)
	defer c.Close()
	c.Set("k", result("Scarf", 65))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k", time.Hour)
	assert.False(t, ok)

	c.evictExpired(time.Now())
	assert.Equal(t, 0, c.Len())
}

func TestMemory_Capacity(t *testing.T) {
	c := NewMemory(3, time.Hour)
	defer c.Close()
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), result("x", float64(i+1)))
	}
	assert.Equal(t, 3, c.Len())

	// Overwriting an existing key does not evict.
	c.Set("k9", result("y", 1))
	assert.Equal(t, 3, c.Len())
	c.Close()
}

// Requires a running memcached; skipped otherwise.
func TestMemcache(t *testing.T) {
	mc := NewMemcache("localhost:11211", time.Minute)
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	key := Key(fmt.Sprintf("https://www.paulsmith.com/test/%d", time.Now().UnixNano()))
	mc.Set(key, result("Blazer", 280))

	e, ok := mc.Get(key, time.Minute)
	require.True(t, ok)
	assert.Equal(t, "Blazer", e.Result.Name)
	assert.Equal(t, 280.0, *e.Result.CurrentPrice)

	assert.NoError(t, mc.Delete(key))
	_, ok = mc.Get(key, time.Minute)
	assert.False(t, ok)
}
