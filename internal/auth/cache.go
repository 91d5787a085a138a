package auth

import (
	"crypto/sha256"
	"sync"
	"sync/atomic"
	"time"
)

// tokenDigest is the cache key for a service key. The plaintext key is never
// retained after the request that presented it.
type tokenDigest [sha256.Size]byte

func digestToken(token string) tokenDigest {
	return sha256.Sum256([]byte(token))
}

// verifiedKey is one bcrypt-verified service key.
type verifiedKey struct {
	service    *ServiceContext
	prefix     string
	verifiedAt time.Time
	refreshing atomic.Bool
}

// keyCache remembers verified service keys so bcrypt runs once per key per
// ttl. Entries older than ttl are still served while one caller re-verifies
// them; entries older than maxStale are treated as misses. Entries are indexed
// by key prefix so a revoked key can be evicted without its plaintext.
type keyCache struct {
	ttl      time.Duration
	maxStale time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	byDigest map[tokenDigest]*verifiedKey
	byPrefix map[string]map[tokenDigest]struct{}
}

// staleFactor sets maxStale as a multiple of ttl.
const staleFactor = 10

func newKeyCache(ttl time.Duration) *keyCache {
	return &keyCache{
		ttl:      ttl,
		maxStale: staleFactor * ttl,
		now:      time.Now,
		byDigest: make(map[tokenDigest]*verifiedKey),
		byPrefix: make(map[string]map[tokenDigest]struct{}),
	}
}

// cacheLookup is the outcome of keyCache.lookup.
type cacheLookup struct {
	service *ServiceContext
	found   bool
	// refresh is set for exactly one caller once the entry passes ttl.
	refresh bool
}

func (c *keyCache) lookup(token string) cacheLookup {
	c.mu.RLock()
	entry, ok := c.byDigest[digestToken(token)]
	c.mu.RUnlock()
	if !ok {
		return cacheLookup{}
	}

	age := c.now().Sub(entry.verifiedAt)
	switch {
	case age < c.ttl:
		return cacheLookup{service: entry.service, found: true}
	case age >= c.maxStale:
		return cacheLookup{}
	}
	return cacheLookup{
		service: entry.service,
		found:   true,
		refresh: entry.refreshing.CompareAndSwap(false, true),
	}
}

// put records a freshly verified key, replacing any older entry.
func (c *keyCache) put(token string, svc *ServiceContext) {
	d := digestToken(token)
	prefix := token[:keyPrefixLen]

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byDigest[d] = &verifiedKey{service: svc, prefix: prefix, verifiedAt: c.now()}
	set, ok := c.byPrefix[prefix]
	if !ok {
		set = make(map[tokenDigest]struct{})
		c.byPrefix[prefix] = set
	}
	set[d] = struct{}{}
}

// releaseRefresh lets another caller retry a refresh that could not complete.
func (c *keyCache) releaseRefresh(token string) {
	c.mu.RLock()
	entry, ok := c.byDigest[digestToken(token)]
	c.mu.RUnlock()
	if ok {
		entry.refreshing.Store(false)
	}
}

// evict drops the entry for token.
func (c *keyCache) evict(token string) {
	d := digestToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byDigest[d]
	if !ok {
		return
	}
	delete(c.byDigest, d)
	if set := c.byPrefix[entry.prefix]; set != nil {
		delete(set, d)
		if len(set) == 0 {
			delete(c.byPrefix, entry.prefix)
		}
	}
}

// evictPrefix drops every entry verified under prefix and returns how many
// were removed.
func (c *keyCache) evictPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.byPrefix[prefix]
	for d := range set {
		delete(c.byDigest, d)
	}
	delete(c.byPrefix, prefix)
	return len(set)
}
