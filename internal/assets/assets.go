// Package assets handles loading and caching of baked terrain tile data.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager loads tile assets (color images, heightmaps, the tile manifest)
// from the bake output directory. Loaded bytes are cached in memory; the
// texture layer above holds decoded images, so entries here are small and
// bounded by the catalog size.
type Manager struct {
	root  string
	cache *Cache
}

// NewManager creates a manager rooted at the bake output directory.
func NewManager(root string) *Manager {
	return &Manager{
		root:  root,
		cache: NewCache(),
	}
}

// Root returns the data directory the manager reads from.
func (m *Manager) Root() string { return m.root }

// Load reads a file addressed by its manifest path (forward slashes,
// relative to the data root).
func (m *Manager) Load(path string) ([]byte, error) {
	if data, ok := m.cache.Get(path); ok {
		return data, nil
	}

	rel := filepath.FromSlash(path)
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") ||
		strings.Contains(rel, string(filepath.Separator)+"..") {
		return nil, fmt.Errorf("asset path escapes data root: %s", path)
	}

	data, err := os.ReadFile(filepath.Join(m.root, rel))
	if err != nil {
		return nil, fmt.Errorf("loading asset %s: %w", path, err)
	}

	m.cache.Set(path, data)
	return data, nil
}

// Stats returns cache hit/miss counters.
func (m *Manager) Stats() (hits, misses int) { return m.cache.Stats() }

// Clear drops all cached asset bytes.
func (m *Manager) Clear() { m.cache.Clear() }

// Cache is a simple in-memory byte cache.
type Cache struct {
	mu   sync.RWMutex
	data map[string][]byte

	hits   int
	misses int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string][]byte)}
}

// Get retrieves an item from the cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in the cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear empties the cache and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns hit/miss counters.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
