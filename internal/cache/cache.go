package cache

import "sync"

// ImageCache maps result image ids to image bytes. It is safe for concurrent use.
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// New returns an empty [ImageCache].
func New() *ImageCache {
	return &ImageCache{entries: make(map[string][]byte)}
}

// Get returns the bytes stored for id.
func (c *ImageCache) Get(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[id]
	return data, ok
}

// Put stores a copy of data under id, replacing any previous entry.
func (c *ImageCache) Put(id string, data []byte) {
	if id == "" || data == nil {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cp
}

// ClearAll drops every entry.
func (c *ImageCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys lists the cached result image ids in no particular order.
func (c *ImageCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}
