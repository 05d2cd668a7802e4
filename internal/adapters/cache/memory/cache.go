package memory

import (
	"context"
	"sync"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"
)

type cache struct {
	mu         sync.RWMutex
	entries    map[string]domain.CachedResponse
	order      []string
	maxEntries int
}

// NewCache creates a bounded in-process response cache. The oldest entry is evicted first.
func NewCache(maxEntries int) port.ResponseCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &cache{entries: make(map[string]domain.CachedResponse), maxEntries: maxEntries}
}

func (c *cache) Get(_ context.Context, key string) (*domain.CachedResponse, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	resp, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &resp, true, nil
}

func (c *cache) Put(_ context.Context, key string, resp domain.CachedResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.order) >= c.maxEntries {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = resp
	return nil
}

func (c *cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return nil
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}
