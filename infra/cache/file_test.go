package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corecache "github.com/kilianp07/fillcast/core/cache"
	"github.com/kilianp07/fillcast/core/factory"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/infra/logger"
)

func testKey(fp string) corecache.Key {
	cutoff := model.MustDay("2025-03-02")
	return corecache.Key{Cutoff: cutoff, Start: model.AddDays(cutoff, 1), End: model.AddDays(cutoff, 7), Fingerprint: fp}
}

func testPoints() []model.ForecastPoint {
	d := model.MustDay("2025-03-03")
	return []model.ForecastPoint{
		{SiteID: "A", Date: d, FillPct: 0.25, PredVolumeM3: 0.275},
		{SiteID: "A", Date: model.AddDays(d, 1), FillPct: 0.85, PredVolumeM3: 0.935, OverflowProb: 1},
		{SiteID: "B", Date: d, FillPct: 0.1, PredVolumeM3: 0.22},
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "nested"))
	require.NoError(t, err)
	k := testKey("")

	ok, err := c.Exists(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.Load(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Save(ctx, k, testPoints(), 2))
	ok, err = c.Exists(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)

	entry, ok, err := c.Load(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testPoints(), entry.Points)
	assert.Equal(t, 2, entry.Meta.SiteCount)
	assert.Equal(t, "2025-03-08", entry.Meta.End)
	assert.Positive(t, entry.Meta.FileSizeBytes)

	_, err = os.Stat(filepath.Join(c.Dir(), "forecast_2025-03-02_2025-03-03_2025-03-08.columns.json"))
	assert.NoError(t, err)
}

func TestFileCacheSaveIsByteStable(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	k := testKey("abc")
	path := filepath.Join(c.Dir(), k.Name()+columnsSuffix)

	require.NoError(t, c.Save(ctx, k, testPoints(), 2))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	entry, _, err := c.Load(ctx, k)
	require.NoError(t, err)
	require.NoError(t, c.Save(ctx, k, entry.Points, 2))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFileCacheMissingSidecar(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	k := testKey("")
	require.NoError(t, c.Save(ctx, k, testPoints(), 2))
	require.NoError(t, os.Remove(filepath.Join(c.Dir(), k.Name()+metaSuffix)))

	ok, err := c.Exists(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
	entry, ok, err := c.Load(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, entry.Meta.SiteCount)
}

func TestFileCacheCorruptTable(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	k := testKey("")
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), k.Name()+columnsSuffix), []byte("{"), 0o644))
	_, _, err = c.Load(context.Background(), k)
	assert.Error(t, err)
}

func TestFileCacheConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	k := testKey("")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Save(ctx, k, testPoints(), 2))
		}()
	}
	wg.Wait()

	files, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	for _, f := range files {
		assert.False(t, strings.HasSuffix(f.Name(), ".tmp"), f.Name())
	}
	assert.Len(t, files, 2)
	entry, ok, err := c.Load(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, entry.Points, 3)
	assert.Empty(t, c.locks)
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, c.Save(ctx, testKey(""), testPoints(), 2))
	require.NoError(t, c.Save(ctx, testKey("0123456789abcdef"), testPoints()[:1], 1))
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), "README"), []byte("keep"), 0o644))

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	files, err := os.ReadDir(c.Dir())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "README", files[0].Name())
	assert.Empty(t, c.locks)
}

func TestFactoryBackends(t *testing.T) {
	dir := t.TempDir()
	c := corecache.New(factory.ModuleConfig{Type: "file", Conf: map[string]any{"dir": dir}}, logger.NopLogger{})
	fc, ok := c.(*FileCache)
	require.True(t, ok)
	assert.Equal(t, dir, fc.Dir())

	assert.IsType(t, &corecache.MemoryCache{}, corecache.New(factory.ModuleConfig{Type: "memory"}, logger.NopLogger{}))

	// an unreachable server degrades to no caching
	c = corecache.New(factory.ModuleConfig{Type: "redis", Conf: map[string]any{"addr": "127.0.0.1:1", "timeout": "50ms"}}, logger.NopLogger{})
	assert.IsType(t, corecache.NopCache{}, c)
}
