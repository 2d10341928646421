package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/use-agent/taxscrape/models"
)

// entry holds a parsed results page with its creation timestamp.
type entry struct {
	page      *models.SearchPage
	createdAt time.Time
}

// Cache is a TTL cache of parsed search results pages.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	done       chan struct{}
}

// New creates a Cache holding at most maxEntries pages for ttl each.
// A background goroutine evicts expired entries every 5 minutes until Close.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Key identifies one results page of one search.
func Key(baseURL, query string, page int) string {
	h := sha256.New()
	h.Write([]byte(baseURL))
	h.Write([]byte("|"))
	h.Write([]byte(query))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(page)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached page younger than the TTL.
func (c *Cache) Get(key string) (*models.SearchPage, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.page, true
}

// Set stores a page. If the cache is at capacity, a random entry is
// evicted to make room.
func (c *Cache) Set(key string, page *models.SearchPage) {
	if c == nil || c.ttl <= 0 || c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		page:      page,
		createdAt: c.now(),
	}
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	close(c.done)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}
