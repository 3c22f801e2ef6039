package collector

import (
	"sync"

	"github.com/mon5termatt/apc-web/internal/reading"
)

// Cache holds the most recent successfully normalized reading. It backs
// the stale-fallback path so a daemon outage never leaves a hard gap in
// the stored series.
type Cache struct {
	mu   sync.Mutex
	last *reading.Reading
}

func NewCache() *Cache {
	return &Cache{}
}

// Set overwrites the cached reading unconditionally.
func (c *Cache) Set(r reading.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &r
}

// Get returns the cached reading and whether one exists.
func (c *Cache) Get() (reading.Reading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		return reading.Reading{}, false
	}

	return *c.last, true
}
