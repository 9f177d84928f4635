package cache

import (
	"sync"
	"time"
)

type entry struct {
	v          any
	insertedAt time.Time
}

// TTLCache is a process-lifetime keyed store organized as named maps,
// one per logical dataset (scan results, universe list, daily bars).
// Expiry is evaluated lazily at read time against the caller-supplied
// TTL. Stale entries are not evicted on read; they are simply ignored
// and overwritten by the next Set. There is no background sweep and no
// capacity bound: each map's key space is bounded by
// symbol/timeframe/parameter combinations, not request volume.
type TTLCache struct {
	mu   sync.RWMutex
	maps map[string]map[string]entry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{maps: make(map[string]map[string]entry)}
}

// Get returns the value for key in the named map, or absent when the
// entry is missing or older than ttl. A non-positive ttl means every
// entry reads as stale.
func (c *TTLCache) Get(m, key string, ttl time.Duration) (any, bool) {
	c.mu.RLock()
	e, ok := c.maps[m][key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if ttl <= 0 || time.Since(e.insertedAt) > ttl {
		return nil, false
	}
	return e.v, true
}

// Set stores the value in the named map, stamping the insertion time.
func (c *TTLCache) Set(m, key string, v any) {
	c.mu.Lock()
	if c.maps[m] == nil {
		c.maps[m] = make(map[string]entry)
	}
	c.maps[m][key] = entry{v: v, insertedAt: time.Now()}
	c.mu.Unlock()
}

type bytesEntry struct {
	b   []byte
	ttl time.Duration
}

// TTLBytes adapts one named map of a TTLCache to the BytesCache
// interface. The TTL supplied at write time is stored alongside the
// value and applied at read time.
type TTLBytes struct {
	c    *TTLCache
	name string
}

func NewTTLBytes(c *TTLCache, name string) *TTLBytes {
	return &TTLBytes{c: c, name: name}
}

func (t *TTLBytes) GetBytes(key string) ([]byte, bool, error) {
	t.c.mu.RLock()
	e, ok := t.c.maps[t.name][key]
	t.c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	be, ok2 := e.v.(bytesEntry)
	if !ok2 || be.ttl <= 0 || time.Since(e.insertedAt) > be.ttl {
		return nil, false, nil
	}
	return be.b, true, nil
}

func (t *TTLBytes) SetBytes(key string, value []byte, ttl time.Duration) error {
	t.c.Set(t.name, key, bytesEntry{b: value, ttl: ttl})
	return nil
}
