package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/fillcast/core/model"
)

type memoryItem struct {
	meta Meta
	data []byte
}

// MemoryCache keeps encoded tables in process memory. Entries go through the
// same columnar encoding as persistent backends.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

func (c *MemoryCache) Exists(_ context.Context, k Key) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[k.Name()]
	return ok, nil
}

func (c *MemoryCache) Load(_ context.Context, k Key) (*Entry, bool, error) {
	c.mu.RLock()
	it, ok := c.items[k.Name()]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	points, err := DecodeColumns(it.data)
	if err != nil {
		return nil, false, err
	}
	return &Entry{Meta: it.meta, Points: points}, true, nil
}

func (c *MemoryCache) Save(_ context.Context, k Key, points []model.ForecastPoint, siteCount int) error {
	data, err := EncodeColumns(points)
	if err != nil {
		return err
	}
	meta := NewMeta(k, siteCount, int64(len(data)), c.now())
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[k.Name()] = memoryItem{meta: meta, data: data}
	return nil
}

func (c *MemoryCache) Clear(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]memoryItem)
	return n, nil
}
