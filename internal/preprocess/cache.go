package preprocess

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache memoizes preprocessing results by input set. It is an explicit,
// injectable object rather than a package-level singleton so tests can
// control it. Entries expire after the TTL; a background sweep evicts
// expired entries periodically. The cache is process-local and best-effort:
// a cold cache never changes output, only latency.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// DefaultCacheTTL is how long a preprocessing result stays valid.
const DefaultCacheTTL = 30 * time.Minute

// NewCache creates a cache with the given TTL (DefaultCacheTTL when ttl <= 0)
// and starts the eviction sweep. Call Stop when done.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Key derives the cache key from the sorted list of input article links.
func Key(links []string) string {
	sorted := make([]string, len(links))
	copy(sorted, links)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for key, or nil when absent or expired.
func (c *Cache) Get(key string) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	return entry.result
}

// Set stores a result under key with the cache's TTL.
func (c *Cache) Set(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
}

// Evict removes a single entry.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop halts the background sweep. Safe to call more than once.
func (c *Cache) Stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) sweep() {
	interval := c.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
