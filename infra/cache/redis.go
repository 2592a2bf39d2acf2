package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	corecache "github.com/kilianp07/fillcast/core/cache"
	"github.com/kilianp07/fillcast/core/model"
)

// DefaultRedisPrefix namespaces forecast keys.
const DefaultRedisPrefix = "fillcast:forecast:"

// RedisConfig configures the redis backend. URL takes precedence over Addr.
type RedisConfig struct {
	URL      string        `json:"url"`
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	Prefix   string        `json:"prefix"`
	Timeout  time.Duration `json:"timeout"`
}

// RedisCache stores the columnar table and metadata of each entry under
// <prefix><name>:data and <prefix><name>:meta.
type RedisCache struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		var err error
		opts, err = redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
	} else {
		if cfg.Addr == "" {
			return nil, errors.New("redis cache: url or addr is required")
		}
		opts = &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache ping: %w", err)
	}
	return &RedisCache{client: client, prefix: cfg.Prefix, now: time.Now}, nil
}

func (c *RedisCache) dataKey(k corecache.Key) string { return c.prefix + k.Name() + ":data" }
func (c *RedisCache) metaKey(k corecache.Key) string { return c.prefix + k.Name() + ":meta" }

// Exists reports whether the table key is present.
func (c *RedisCache) Exists(ctx context.Context, k corecache.Key) (bool, error) {
	n, err := c.client.Exists(ctx, c.dataKey(k)).Result()
	if err != nil {
		return false, fmt.Errorf("redis cache exists: %w", err)
	}
	return n == 1, nil
}

// Load reads both keys in one round trip.
func (c *RedisCache) Load(ctx context.Context, k corecache.Key) (*corecache.Entry, bool, error) {
	vals, err := c.client.MGet(ctx, c.dataKey(k), c.metaKey(k)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis cache load: %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, false, nil
	}
	points, err := corecache.DecodeColumns([]byte(data))
	if err != nil {
		return nil, false, err
	}
	meta := corecache.RecoverMeta(k, points, int64(len(data)))
	if raw, ok := vals[1].(string); ok {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, false, fmt.Errorf("redis cache meta: %w", err)
		}
	}
	return &corecache.Entry{Meta: meta, Points: points}, true, nil
}

// Save writes both keys in a MULTI/EXEC transaction.
func (c *RedisCache) Save(ctx context.Context, k corecache.Key, points []model.ForecastPoint, siteCount int) error {
	data, err := corecache.EncodeColumns(points)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(corecache.NewMeta(k, siteCount, int64(len(data)), c.now()))
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, c.dataKey(k), data, 0)
		p.Set(ctx, c.metaKey(k), meta, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis cache save: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix and returns the number of
// entries removed.
func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	entries := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":data") {
			entries++
		}
		batch = append(batch, key)
		if len(batch) == 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return 0, fmt.Errorf("redis cache clear: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis cache clear: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return 0, fmt.Errorf("redis cache clear: %w", err)
		}
	}
	return entries, nil
}

// Close releases the client.
func (c *RedisCache) Close() error { return c.client.Close() }
