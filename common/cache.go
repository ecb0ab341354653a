package common

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/ravine-network/ravine/log"
)

var logger = log.NewModuleLogger(log.Common)

// Cache is the minimal interface every cache-backed registry in the node
// programs against, so the backing implementation (plain LRU, sharded LRU,
// ARC) can be swapped without touching call sites.
type Cache interface {
	Add(key, value interface{}) bool
	Get(key interface{}) (interface{}, bool)
	Contains(key interface{}) bool
	Remove(key interface{})
	Purge()
	Len() int
}

// CacheConfiger builds a concrete Cache; each config value knows how to
// construct its own backing store.
type CacheConfiger interface {
	NewCache() Cache
}

// LRUConfig builds a single, non-sharded LRU cache of the given capacity.
type LRUConfig struct {
	CacheSize int
}

func (c LRUConfig) NewCache() Cache {
	cache, err := lru.New(c.CacheSize)
	if err != nil {
		// Only possible failure is a non-positive size, which is a
		// programming error in a cache config constant.
		logger.Crit("Failed to create LRU cache", "size", c.CacheSize, "err", err)
	}
	return &lruCache{cache: cache}
}

type lruCache struct {
	cache *lru.Cache
}

func (c *lruCache) Add(key, value interface{}) bool    { return c.cache.Add(key, value) }
func (c *lruCache) Get(key interface{}) (interface{}, bool) { return c.cache.Get(key) }
func (c *lruCache) Contains(key interface{}) bool      { return c.cache.Contains(key) }
func (c *lruCache) Remove(key interface{})             { c.cache.Remove(key) }
func (c *lruCache) Purge()                             { c.cache.Purge() }
func (c *lruCache) Len() int                            { return c.cache.Len() }

// Uniquer deduplicates equal values behind a single shared pointer/handle so
// that two votes or blocks with identical content are only ever held once in
// memory — the pattern the election and block-processor registries use to
// bound their own footprint under replay/flood.
type Uniquer struct {
	cache Cache
}

// NewUniquer constructs a Uniquer backed by an LRU of the given size. Block
// and vote uniquers use independent instances so a flood of one kind cannot
// evict the other's entries.
func NewUniquer(size int) *Uniquer {
	return &Uniquer{cache: LRUConfig{CacheSize: size}.NewCache()}
}

// Unique returns the canonical stored value for key, storing value if this
// is the first time key has been seen.
func (u *Uniquer) Unique(key Hash, value interface{}) interface{} {
	if existing, ok := u.cache.Get(key); ok {
		return existing
	}
	u.cache.Add(key, value)
	return value
}

func (u *Uniquer) Size() int { return u.cache.Len() }
