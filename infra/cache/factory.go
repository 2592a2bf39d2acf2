package cache

import (
	"context"

	corecache "github.com/kilianp07/fillcast/core/cache"
	"github.com/kilianp07/fillcast/core/factory"
)

// DefaultDir is used by the file backend when no dir is configured.
const DefaultDir = "cache/forecasts"

// init registers built-in cache backends.
func init() {
	_ = corecache.RegisterBackend("file", func(conf map[string]any) (corecache.Cache, error) {
		var c struct {
			Dir string `json:"dir"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Dir == "" {
			c.Dir = DefaultDir
		}
		return NewFileCache(c.Dir)
	})

	_ = corecache.RegisterBackend("memory", func(map[string]any) (corecache.Cache, error) {
		return corecache.NewMemoryCache(), nil
	})

	_ = corecache.RegisterBackend("redis", func(conf map[string]any) (corecache.Cache, error) {
		var c RedisConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRedisCache(context.Background(), c)
	})
}
