package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fillcast/core/factory"
	"github.com/kilianp07/fillcast/core/model"
)

type captureLog struct{ warnings int }

func (c *captureLog) Debugf(string, ...any)         {}
func (c *captureLog) Debugw(string, map[string]any) {}
func (c *captureLog) Infof(string, ...any)          {}
func (c *captureLog) Infow(string, map[string]any)  {}
func (c *captureLog) Warnf(string, ...any)          { c.warnings++ }
func (c *captureLog) Errorf(string, ...any)         {}

func TestFingerprintCanonical(t *testing.T) {
	assert.Empty(t, Fingerprint(Filters{}))
	assert.Empty(t, Fingerprint(Filters{District: "  "}))

	a := Fingerprint(Filters{SiteIDs: []string{"B", "a", "A"}, District: "North"})
	b := Fingerprint(Filters{SiteIDs: []string{"a", "b"}, District: "north "})
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	c := Fingerprint(Filters{SiteIDs: []string{"a"}})
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, Fingerprint(Filters{Search: "x"}), Fingerprint(Filters{District: "x"}))
}

func TestKeyName(t *testing.T) {
	k := NewKey(model.MustDay("2025-03-01"), model.MustDay("2025-03-02"), model.MustDay("2025-03-08"), Filters{})
	assert.Equal(t, "forecast_2025-03-01_2025-03-02_2025-03-08", k.Name())

	k = NewKey(model.MustDay("2025-03-01"), model.MustDay("2025-03-02"), model.MustDay("2025-03-08"), Filters{Search: "x"})
	assert.Contains(t, k.Name(), "forecast_2025-03-01_2025-03-02_2025-03-08_")
}

func TestMetaCoversExactSites(t *testing.T) {
	day := model.MustDay("2025-03-01")
	k := NewKey(day, day, day, Filters{SiteIDs: []string{" B", "A", "B"}})
	assert.Equal(t, []string{"A", "B"}, k.SiteIDs)
	assert.Equal(t, Fingerprint(Filters{SiteIDs: []string{"a", "b"}}), k.Fingerprint)

	meta := NewMeta(k, 2, 10, day)
	assert.True(t, meta.Covers([]string{"B", "A"}))
	assert.True(t, meta.Covers([]string{"A"}))
	assert.True(t, meta.Covers(nil))
	assert.False(t, meta.Covers([]string{"a"}))
	assert.False(t, Meta{}.Covers([]string{"A"}))
}

func TestRecoverMetaUsesStoredSites(t *testing.T) {
	day := model.MustDay("2025-03-01")
	points := []model.ForecastPoint{{SiteID: "A", Date: day}, {SiteID: "A", Date: model.AddDays(day, 1)}}

	meta := RecoverMeta(NewKey(day, day, day, Filters{SiteIDs: []string{"a"}}), points, 10)
	assert.Equal(t, []string{"A"}, meta.SiteIDs)
	assert.Equal(t, 1, meta.SiteCount)
	assert.False(t, meta.Covers([]string{"a"}))

	assert.Nil(t, RecoverMeta(NewKey(day, day, day, Filters{District: "north"}), points, 10).SiteIDs)
}

func TestColumnsRoundTrip(t *testing.T) {
	points := []model.ForecastPoint{
		{SiteID: "A", Date: model.MustDay("2025-03-02"), FillPct: 0.1, PredVolumeM3: 0.11, OverflowProb: 0},
		{SiteID: "A", Date: model.MustDay("2025-03-03"), FillPct: 1, PredVolumeM3: 1.4000000000000001, OverflowProb: 1},
	}
	data, err := EncodeColumns(points)
	require.NoError(t, err)
	out, err := DecodeColumns(data)
	require.NoError(t, err)
	assert.Equal(t, points, out)

	again, err := EncodeColumns(out)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestDecodeColumnsRejectsRaggedTable(t *testing.T) {
	_, err := DecodeColumns([]byte(`{"site_id":["A"],"date":[],"fill_pct":[],"pred_volume_m3":[],"overflow_prob":[]}`))
	assert.Error(t, err)
}

func TestNewFallsBackToNop(t *testing.T) {
	require.NoError(t, RegisterBackend("broken-test", func(map[string]any) (Cache, error) {
		return nil, errors.New("engine unavailable")
	}))
	log := &captureLog{}
	c := New(factory.ModuleConfig{Type: "broken-test"}, log)
	assert.IsType(t, NopCache{}, c)
	assert.Equal(t, 1, log.warnings)

	_, ok, err := c.Load(context.Background(), Key{})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	day := model.MustDay("2025-03-01")
	k := NewKey(day, model.AddDays(day, 1), model.AddDays(day, 2), Filters{})

	ok, err := c.Exists(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	points := []model.ForecastPoint{{SiteID: "s1", Date: model.AddDays(day, 1), FillPct: 12.5, PredVolumeM3: 0.1375}}
	require.NoError(t, c.Save(ctx, k, points, 1))

	entry, ok, err := c.Load(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, points, entry.Points)
	assert.Equal(t, 1, entry.Meta.SiteCount)
	assert.Equal(t, "2025-03-01", entry.Meta.Cutoff)

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, _ = c.Load(ctx, k)
	assert.False(t, ok)
}
