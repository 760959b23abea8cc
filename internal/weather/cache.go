package weather

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"citywatch/internal/models"
)

type cacheEntry struct {
	snapshot models.WeatherSnapshot
	storedAt time.Time
}

// snapshotCache is a time-bounded in-memory cache keyed by lookup query.
// Entries older than the TTL are treated as absent and evicted lazily on
// the next access.
type snapshotCache struct {
	mu    sync.RWMutex
	items map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

func newSnapshotCache(ttl time.Duration, now func() time.Time) *snapshotCache {
	if now == nil {
		now = time.Now
	}
	return &snapshotCache{
		items: make(map[string]cacheEntry),
		ttl:   ttl,
		now:   now,
	}
}

func (c *snapshotCache) get(key string) (models.WeatherSnapshot, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return models.WeatherSnapshot{}, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.mu.Lock()
		// A concurrent set may have replaced the entry since the read;
		// only evict if it is still the stale one.
		if current, ok := c.items[key]; ok && current.storedAt.Equal(entry.storedAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return models.WeatherSnapshot{}, false
	}
	return entry.snapshot, true
}

func (c *snapshotCache) set(key string, snapshot models.WeatherSnapshot) {
	c.mu.Lock()
	c.items[key] = cacheEntry{snapshot: snapshot, storedAt: c.now()}
	c.mu.Unlock()
}

// cityKey derives the cache key for a name lookup from the lowercase
// trimmed name. The name and coordinate key spaces never collide and are
// never merged, even when they resolve to the same physical place.
func cityKey(name string) string {
	return "city:" + strings.ToLower(strings.TrimSpace(name))
}

// coordsKey derives the cache key for a coordinate lookup from the exact
// pair.
func coordsKey(lat, lon float64) string {
	return fmt.Sprintf("coords:%s,%s",
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64))
}
