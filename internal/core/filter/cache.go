package filter

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default AST cache capacity (spec §4.2).
const DefaultCacheSize = 256

// Cache is a bounded LRU mapping an exact filter string to its parsed,
// shared, immutable AST. A cache hit never returns a partially constructed
// AST: the underlying lru.Cache only ever holds fully-parsed nodes, and its
// own locking serializes get/add against concurrent evictions.
type Cache struct {
	lru *lru.Cache[string, *Node]
}

// NewCache constructs a Cache with the given capacity. Capacity <= 0 falls
// back to DefaultCacheSize.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c, err := lru.New[string, *Node](capacity)
	if err != nil {
		// Only returns an error for non-positive size, which we've
		// already guarded against.
		panic(err)
	}
	return &Cache{lru: c}
}

// Get parses filterStr into an AST, serving from cache on a hit and
// populating the cache on a miss. Returns an *InvalidFilterError on parse
// failure; failed parses are never cached.
func (c *Cache) Get(filterStr string) (*Node, error) {
	if node, ok := c.lru.Get(filterStr); ok {
		return node, nil
	}
	node, err := Parse(filterStr)
	if err != nil {
		return nil, err
	}
	c.lru.Add(filterStr, node)
	return node, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }
