package tiles

import (
	"context"
	"image"
	"sync"

	"github.com/Faultbox/alpenglow/internal/engine/texture"
)

// Loader supplies raw asset bytes for a manifest path. *assets.Manager
// satisfies it.
type Loader interface {
	Load(path string) ([]byte, error)
}

// Texture is one decoded, shared tile image. Tiles reference cache entries,
// they never own them.
type Texture struct {
	Path  string
	Image image.Image
	RGBA  *image.RGBA
}

// TextureCache loads and decodes textures keyed by path. Each path is loaded
// at most once: concurrent requests for the same path coalesce into a single
// load. Successful entries live for the cache's lifetime; failures are
// evicted so the next request retries.
type TextureCache struct {
	loader Loader

	mu      sync.Mutex
	entries map[string]*textureEntry
}

type textureEntry struct {
	done chan struct{}
	tex  *Texture
	err  error
}

// NewTextureCache creates a cache backed by the given loader.
func NewTextureCache(loader Loader) *TextureCache {
	return &TextureCache{
		loader:  loader,
		entries: make(map[string]*textureEntry),
	}
}

// Get returns the shared texture for a path, loading and decoding it if this
// is the first request. Blocks until the load completes or ctx is done.
func (c *TextureCache) Get(ctx context.Context, path string) (*Texture, error) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		e = &textureEntry{done: make(chan struct{})}
		c.entries[path] = e
		go c.load(e, path)
	}
	c.mu.Unlock()

	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.tex, e.err
}

func (c *TextureCache) load(e *textureEntry, path string) {
	defer close(e.done)

	data, err := c.loader.Load(path)
	if err == nil {
		var img image.Image
		img, err = texture.Decode(data, path)
		if err == nil {
			e.tex = &Texture{Path: path, Image: img, RGBA: texture.ImageToRGBA(img)}
		}
	}
	if err != nil {
		e.err = err
		// Evict so the next request for this path retries the load.
		c.mu.Lock()
		if c.entries[path] == e {
			delete(c.entries, path)
		}
		c.mu.Unlock()
	}
}

// Len returns the number of resident entries.
func (c *TextureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
