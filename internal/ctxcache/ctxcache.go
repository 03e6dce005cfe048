// Package ctxcache memoizes query results with a TTL. Keys are stable
// hashes of the query text plus normalized search options, so the same
// logical request always lands on the same entry. Expired entries are
// removed by a periodic sweep, not per lookup. Nothing invalidates an
// entry when the underlying chunks change; staleness is bounded only by
// the TTL, which is the documented consistency gap of this layer.
package ctxcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultTTL is how long a cached result stays valid.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is how often the expiry sweep runs.
	DefaultSweepInterval = time.Minute
)

// KeyParams are the request fields that identify a cache entry. Query
// whitespace is normalized before hashing so trivially different
// requests share one entry.
type KeyParams struct {
	Query             string
	Threshold         float64
	MaxResults        int
	AllowInsufficient bool
	MaxTokens         int
}

// Hash returns the stable cache key for these parameters.
func (p KeyParams) Hash() string {
	normalized := strings.ToLower(strings.Join(strings.Fields(p.Query), " "))
	canonical := fmt.Sprintf("q=%s|t=%.6f|n=%d|a=%t|b=%d",
		normalized, p.Threshold, p.MaxResults, p.AllowInsufficient, p.MaxTokens)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:16])
}

// Cache is a TTL result cache with a background expiry sweep.
type Cache struct {
	inner *gocache.Cache
	ttl   time.Duration
}

// New creates a cache. Non-positive durations select the defaults.
func New(ttl, sweepInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Cache{
		inner: gocache.New(ttl, sweepInterval),
		ttl:   ttl,
	}
}

// Get returns the entry for key if present and unexpired.
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.inner.Get(key)
}

// Set stores value under key with the cache's default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.inner.Set(key, value, gocache.DefaultExpiration)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.inner.Set(key, value, ttl)
}

// Len reports the number of entries, expired-but-unswept included.
func (c *Cache) Len() int {
	return c.inner.ItemCount()
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.inner.Flush()
}

// TTL returns the cache's default entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
