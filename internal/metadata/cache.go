package metadata

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Definition is what the cache holds for one entity kind: the document the
// schema was built from and the schema itself.
type Definition struct {
	Document *Document
	Schema   *Schema
}

// Cache is the connection-scoped store of entity definitions. Keys are
// normalized with NormalizeName on every call.
type Cache struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	group singleflight.Group
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{defs: make(map[string]*Definition)}
}

// Contains reports whether a definition is cached for logicalName.
func (c *Cache) Contains(logicalName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defs[NormalizeName(logicalName)]
	return ok
}

// Get returns the cached definition for logicalName.
func (c *Cache) Get(logicalName string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[NormalizeName(logicalName)]
	return def, ok
}

// Set stores def under logicalName, replacing any previous entry.
func (c *Cache) Set(logicalName string, def *Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[NormalizeName(logicalName)] = def
}

// Len returns the number of cached definitions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Names returns the cached logical names, sorted.
func (c *Cache) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Exclusive runs fn as the only check-fetch-store sequence in flight for
// logicalName. Concurrent callers for the same name wait for and share the
// first caller's result instead of running fn again.
func (c *Cache) Exclusive(logicalName string, fn func() (*Definition, error)) (*Definition, error) {
	v, err, _ := c.group.Do(NormalizeName(logicalName), func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Definition), nil
}
