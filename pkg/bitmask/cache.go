package bitmask

import (
	"sync"
	"time"
)

// directoryCache holds the last provider list returned by the core.
// An entry expires after a configurable TTL.
type directoryCache struct {
	mu        sync.RWMutex
	domains   []string
	expiresAt time.Time
	ttl       time.Duration
}

func newDirectoryCache(ttl time.Duration) *directoryCache {
	return &directoryCache{ttl: ttl}
}

// get returns a copy of the cached domains.
func (c *directoryCache) get() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.domains == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	out := make([]string, len(c.domains))
	copy(out, c.domains)
	return out, true
}

// set stores domains in the cache.
func (c *directoryCache) set(domains []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domains = make([]string, len(domains))
	copy(c.domains, domains)
	c.expiresAt = time.Now().Add(c.ttl)
}

// invalidate drops the cached list.
func (c *directoryCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domains = nil
}
