package embedder

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/memctx-mcp/pkg/types"
)

const (
	// DefaultCacheCapacity bounds the in-memory embedding cache.
	DefaultCacheCapacity = 10000

	// DefaultFlushEvery is the number of insertions between disk
	// flushes of the cache file.
	DefaultFlushEvery = 50
)

// Cache is a bounded embedding cache keyed by normalized input text.
// Entries carry the full Result, not just the vector, so a hit
// preserves which backend produced the embedding and whether it was
// degraded. Eviction is LRU (an explicit upgrade over the FIFO the
// behavior was modeled on). The cache is flushed to a JSON file every
// FlushEvery insertions so it survives restarts; cache file I/O
// failures are non-fatal and reported as ErrCacheIO.
type Cache struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, Result]
	path       string
	dimension  int
	flushEvery int
	insertions int
}

// NewCache creates a cache bounded to capacity entries, persisted at
// path. Entries loaded from disk whose length disagrees with dimension
// are discarded; they were written under a different committed backend.
// An unreadable cache file is logged and bypassed, never fatal.
func NewCache(capacity int, path string, dimension, flushEvery int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}

	entries, err := lru.New[string, Result](capacity)
	if err != nil {
		// Only reachable with a non-positive size, guarded above.
		entries, _ = lru.New[string, Result](DefaultCacheCapacity)
	}

	c := &Cache{
		entries:    entries,
		path:       path,
		dimension:  dimension,
		flushEvery: flushEvery,
	}

	if path != "" {
		if err := c.load(); err != nil {
			log.Printf("embedding cache load: %v (cache bypassed)", err)
		}
	}

	return c
}

// Get retrieves a copy of the cached result for key, provenance
// included.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}

	out := entry
	out.Vector = make([]float32, len(entry.Vector))
	copy(out.Vector, entry.Vector)
	return &out, true
}

// Set stores a result and flushes to disk every FlushEvery insertions.
func (c *Cache) Set(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := result
	stored.Vector = make([]float32, len(result.Vector))
	copy(stored.Vector, result.Vector)
	c.entries.Add(key, stored)

	c.insertions++
	if c.path != "" && c.insertions%c.flushEvery == 0 {
		if err := c.flushLocked(); err != nil {
			log.Printf("embedding cache flush: %v", err)
		}
	}
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Flush writes the cache to its file immediately.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		return nil
	}
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	snapshot := make(map[string]Result, c.entries.Len())
	for _, key := range c.entries.Keys() {
		if entry, ok := c.entries.Peek(key); ok {
			snapshot[key] = entry
		}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", types.ErrCacheIO, err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheIO, err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheIO, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheIO, err)
	}
	return nil
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheIO, err)
	}

	var snapshot map[string]Result
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("%w: parse: %v", types.ErrCacheIO, err)
	}

	for key, entry := range snapshot {
		if len(entry.Vector) == 0 {
			continue
		}
		if c.dimension > 0 && len(entry.Vector) != c.dimension {
			continue
		}
		c.entries.Add(key, entry)
	}
	return nil
}
