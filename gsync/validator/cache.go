package validator

import (
	"strconv"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// URLCache remembers which url was issued for which account. An entry is
// fresh until its creation time plus the TTL and is dropped lazily on the
// first lookup past that. Safe for concurrent use.
type URLCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]types.GachaURL
}

// NewURLCache returns an empty cache.
func NewURLCache(ttl time.Duration) *URLCache {
	return &URLCache{ttl: ttl, now: time.Now, entries: make(map[string]types.GachaURL)}
}

// WithClock replaces the wall clock, for tests.
func (c *URLCache) WithClock(now func() time.Time) *URLCache {
	c.now = now
	return c
}

// CacheKey joins facet, uid and the cache address tag of url.
func CacheKey(facet types.Facet, uid string, url types.GachaURL) string {
	return string(facet) + "|" + uid + "|" + strconv.FormatUint(uint64(url.AddrOrZero()), 10)
}

// Lookup returns the url cached for (facet, uid) under the address of
// candidate when it is still fresh.
func (c *URLCache) Lookup(facet types.Facet, uid string, candidate types.GachaURL) (types.GachaURL, bool) {
	key := CacheKey(facet, uid, candidate)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries[key]
	if !ok {
		return types.GachaURL{}, false
	}
	if !c.fresh(cached, now) {
		delete(c.entries, key)
		return types.GachaURL{}, false
	}
	return cached, true
}

// Store caches url for (facet, uid).
func (c *URLCache) Store(facet types.Facet, uid string, url types.GachaURL) {
	key := CacheKey(facet, uid, url)

	c.mu.Lock()
	c.entries[key] = url
	c.mu.Unlock()
}

// Len counts the entries, expired ones included until they are looked up.
func (c *URLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *URLCache) fresh(url types.GachaURL, now time.Time) bool {
	return url.CreationTime.Add(c.ttl).After(now)
}
