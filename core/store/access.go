package store

import (
	"context"
	"fmt"

	"github.com/kilianp07/fillcast/core/cache"
	"github.com/kilianp07/fillcast/core/model"
)

// Access is the full data-access contract consumed by the forecast
// orchestrator: source reads plus delegated cache operations.
type Access interface {
	LoadServiceEvents(ctx context.Context, q EventQuery) ([]model.ServiceEvent, error)
	// LoadRegistry never fails for missing sites: requested ids without
	// metadata get a placeholder entry.
	LoadRegistry(ctx context.Context, siteIDs []string) (model.Registry, error)
	LoadCache(ctx context.Context, k cache.Key) (*cache.Entry, bool, error)
	SaveCache(ctx context.Context, k cache.Key, points []model.ForecastPoint, siteCount int) error
	CacheExists(ctx context.Context, k cache.Key) (bool, error)
	ClearCache(ctx context.Context) (int, error)
}

// Layer composes a Source with a forecast cache.
type Layer struct {
	src   Source
	cache cache.Cache
}

// NewLayer wires src and c together. A nil cache disables caching.
func NewLayer(src Source, c cache.Cache) *Layer {
	if c == nil {
		c = cache.NopCache{}
	}
	return &Layer{src: src, cache: c}
}

// LoadServiceEvents delegates to the source.
func (l *Layer) LoadServiceEvents(ctx context.Context, q EventQuery) ([]model.ServiceEvent, error) {
	events, err := l.src.LoadServiceEvents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load service events: %w", err)
	}
	return events, nil
}

// LoadRegistry loads metadata and derives placeholders for unknown sites.
func (l *Layer) LoadRegistry(ctx context.Context, siteIDs []string) (model.Registry, error) {
	reg, err := l.src.LoadRegistry(ctx, siteIDs)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if reg == nil {
		reg = make(model.Registry)
	}
	for id, e := range reg {
		reg[id] = e.Normalize()
	}
	reg.EnsureSites(siteIDs)
	return reg, nil
}

func (l *Layer) LoadCache(ctx context.Context, k cache.Key) (*cache.Entry, bool, error) {
	return l.cache.Load(ctx, k)
}

func (l *Layer) SaveCache(ctx context.Context, k cache.Key, points []model.ForecastPoint, siteCount int) error {
	return l.cache.Save(ctx, k, points, siteCount)
}

func (l *Layer) CacheExists(ctx context.Context, k cache.Key) (bool, error) {
	return l.cache.Exists(ctx, k)
}

func (l *Layer) ClearCache(ctx context.Context) (int, error) {
	return l.cache.Clear(ctx)
}

// Close releases the underlying source.
func (l *Layer) Close() error { return l.src.Close() }
