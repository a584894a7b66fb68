package pattern

import (
	"fmt"

	"github.com/hashicorp/golang-lru/arc/v2"
)

// DefaultCacheSize is the number of compiled patterns kept by NewCache when
// no size is given.
const DefaultCacheSize = 4096

type cacheKey struct {
	text  string
	flags Flags
}

// Observer is notified of cache lookups.
type Observer interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

// Cache memoizes compiled patterns by normalized text and flags. It is
// safe for concurrent use; build one per process and share it.
type Cache struct {
	arc      *arc.ARCCache[cacheKey, *Pattern]
	observer Observer
}

// NewCache returns a Cache holding up to size patterns.
func NewCache(size int, observer Observer) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := arc.NewARC[cacheKey, *Pattern](size)
	if err != nil {
		return nil, fmt.Errorf("creating pattern cache: %w", err)
	}
	return &Cache{arc: c, observer: observer}, nil
}

// Compile returns the compiled pattern for text, compiling it on first use.
func (c *Cache) Compile(text string, flags Flags) (*Pattern, error) {
	text, flags = normalize(text, flags)
	key := cacheKey{text: text, flags: flags}
	if p, ok := c.arc.Get(key); ok {
		if c.observer != nil {
			c.observer.CacheHit("pattern")
		}
		return p, nil
	}
	if c.observer != nil {
		c.observer.CacheMiss("pattern")
	}
	p, err := compile(text, flags)
	if err != nil {
		return nil, err
	}
	c.arc.Add(key, p)
	return p, nil
}

// Len returns the number of cached patterns.
func (c *Cache) Len() int {
	return c.arc.Len()
}
