package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fillcast/core/cache"
	"github.com/kilianp07/fillcast/core/metrics"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/core/store"
	"github.com/kilianp07/fillcast/infra/logger"
)

var cutoff = model.MustDay("2025-03-02")

func weeklyEvents(site string, volume float64) []model.ServiceEvent {
	var events []model.ServiceEvent
	for d := model.MustDay("2025-01-05"); !d.After(cutoff); d = model.AddDays(d, 7) {
		events = append(events, model.ServiceEvent{SiteID: site, Date: d, VolumeM3: volume})
	}
	return events
}

func fixtureStore() *store.MemoryStore {
	events := append(weeklyEvents("A", 0.7), weeklyEvents("B", 1.4)...)
	// an event after the cutoff must never leak into a run
	events = append(events, model.ServiceEvent{SiteID: "A", Date: model.AddDays(cutoff, 1), VolumeM3: 50})
	return store.NewMemoryStore(events, []model.RegistryEntry{
		{SiteID: "A", District: "North-1", Address: "1 Main St", BinCount: 1, BinSizeLiters: 1100},
		{SiteID: "B", District: "South", Address: "5 Harbour Rd", BinCount: 2, BinSizeLiters: 1100},
	})
}

type warnCounter struct {
	logger.NopLogger
	warnings int
}

func (w *warnCounter) Warnf(string, ...any) { w.warnings++ }

type brokenCache struct{}

func (brokenCache) Exists(context.Context, cache.Key) (bool, error) { return false, errors.New("disk") }
func (brokenCache) Load(context.Context, cache.Key) (*cache.Entry, bool, error) {
	return nil, false, errors.New("disk")
}
func (brokenCache) Save(context.Context, cache.Key, []model.ForecastPoint, int) error {
	return errors.New("disk")
}
func (brokenCache) Clear(context.Context) (int, error) { return 0, errors.New("disk") }

type recordingSink struct {
	runs []metrics.ForecastRunEvent
	ops  map[string]int
}

func (r *recordingSink) RecordForecastRun(ev metrics.ForecastRunEvent) error {
	r.runs = append(r.runs, ev)
	return nil
}

func (r *recordingSink) RecordCacheEvent(ev metrics.CacheEvent) error {
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[ev.Op] += ev.Count
	return nil
}

func newService(c cache.Cache, sink metrics.MetricsSink) *Service {
	return NewService(store.NewLayer(fixtureStore(), c), Options{MaxCutoff: model.MustDay("2025-12-31")}, logger.NopLogger{}, sink)
}

func TestRunCachesDeterministically(t *testing.T) {
	svc := newService(cache.NewMemoryCache(), nil)
	req := model.ForecastRequest{Cutoff: cutoff, HorizonDays: 14}

	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 2, first.SiteCount)
	assert.Len(t, first.Points, 2*14)
	assert.Equal(t, model.MustDay("2025-03-03"), first.Start)
	assert.Equal(t, model.MustDay("2025-03-16"), first.End)

	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)

	a, err := json.Marshal(first.Points)
	require.NoError(t, err)
	b, err := json.Marshal(second.Points)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunIgnoresEventsAfterCutoff(t *testing.T) {
	svc := newService(nil, nil)
	res, err := svc.Run(context.Background(), model.ForecastRequest{Cutoff: cutoff, HorizonDays: 1, SiteIDs: []string{"A"}})
	require.NoError(t, err)
	require.Len(t, res.Points, 1)
	// 0.7 m3 per week spread evenly on a 1.1 m3 bin
	assert.InDelta(t, 0.1, res.Points[0].PredVolumeM3, 1e-9)
	assert.InDelta(t, 0.1/1.1, res.Points[0].FillPct, 1e-9)
}

func TestRunFiltersAreIndependent(t *testing.T) {
	c := cache.NewMemoryCache()
	svc := newService(c, nil)
	ctx := context.Background()

	north, err := svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 7, District: "north"})
	require.NoError(t, err)
	assert.Equal(t, 1, north.SiteCount)
	for _, p := range north.Points {
		assert.Equal(t, "A", p.SiteID)
	}

	all, err := svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 7})
	require.NoError(t, err)
	assert.False(t, all.Cached, "filtered entry must not serve an unfiltered request")
	assert.Equal(t, 2, all.SiteCount)

	n, err := svc.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunSiteIDsAreCaseSensitive(t *testing.T) {
	src := fixtureStore()
	for _, ev := range weeklyEvents("a", 0.35) {
		src.AddEvent(ev)
	}
	sink := &recordingSink{}
	svc := NewService(store.NewLayer(src, cache.NewMemoryCache()), Options{MaxCutoff: model.MustDay("2025-12-31")}, logger.NopLogger{}, sink)
	ctx := context.Background()

	upper, err := svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 3, SiteIDs: []string{"A"}})
	require.NoError(t, err)
	assert.False(t, upper.Cached)
	require.Len(t, upper.Points, 3)

	lower, err := svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 3, SiteIDs: []string{"a"}})
	require.NoError(t, err)
	assert.False(t, lower.Cached, "entry for site A must not serve site a")
	require.Len(t, lower.Points, 3)
	for _, p := range lower.Points {
		assert.Equal(t, "a", p.SiteID)
	}
	assert.Equal(t, 2, sink.ops[metrics.CacheMiss])

	again, err := svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 3, SiteIDs: []string{"a"}})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, lower.Points, again.Points)
}

func TestRunSearchAndSiteFilters(t *testing.T) {
	svc := newService(nil, nil)
	ctx := context.Background()

	res, err := svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 3, Search: "HARBOUR"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SiteCount)
	assert.Equal(t, "B", res.Points[0].SiteID)

	res, err = svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 3, SiteIDs: []string{"B"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SiteCount)
	assert.Len(t, res.Points, 3)

	res, err = svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 3, District: "east"})
	require.NoError(t, err)
	assert.Empty(t, res.Points)
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	svc := newService(nil, nil)
	ctx := context.Background()

	_, err := svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 0})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = svc.Run(ctx, model.ForecastRequest{Cutoff: cutoff, HorizonDays: 366})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = svc.Run(ctx, model.ForecastRequest{Cutoff: model.MustDay("2026-01-01"), HorizonDays: 7})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestRunWithoutHistoryReturnsEmpty(t *testing.T) {
	c := cache.NewMemoryCache()
	log := &warnCounter{}
	svc := NewService(store.NewLayer(store.NewMemoryStore(nil, nil), c), Options{}, log, nil)

	res, err := svc.Run(context.Background(), model.ForecastRequest{Cutoff: cutoff, HorizonDays: 7})
	require.NoError(t, err)
	assert.Empty(t, res.Points)
	assert.NotNil(t, res.Points)
	assert.Equal(t, 1, log.warnings)

	res, err = svc.Run(context.Background(), model.ForecastRequest{Cutoff: cutoff, HorizonDays: 7})
	require.NoError(t, err)
	assert.False(t, res.Cached)
}

func TestRunDegradesOnCacheFailure(t *testing.T) {
	log := &warnCounter{}
	svc := NewService(store.NewLayer(fixtureStore(), brokenCache{}), Options{}, log, nil)

	res, err := svc.Run(context.Background(), model.ForecastRequest{Cutoff: cutoff, HorizonDays: 5})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Len(t, res.Points, 10)
	assert.Equal(t, 2, log.warnings)

	_, err = svc.ClearCache(context.Background())
	assert.Error(t, err)
}

func TestRunRecordsMetrics(t *testing.T) {
	sink := &recordingSink{}
	svc := newService(cache.NewMemoryCache(), sink)
	req := model.ForecastRequest{Cutoff: cutoff, HorizonDays: 2, SiteIDs: []string{"A"}}
	for i := 0; i < 2; i++ {
		_, err := svc.Run(context.Background(), req)
		require.NoError(t, err)
	}
	require.Len(t, sink.runs, 2)
	assert.False(t, sink.runs[0].Cached)
	assert.True(t, sink.runs[1].Cached)
	assert.True(t, sink.runs[1].Filtered)
	assert.Equal(t, 2, sink.runs[1].Points)
	assert.Equal(t, map[string]int{metrics.CacheMiss: 1, metrics.CacheStore: 1, metrics.CacheHit: 1}, sink.ops)
}

func TestRatesReportsProvenance(t *testing.T) {
	svc := newService(nil, nil)
	rates, err := svc.Rates(context.Background(), model.ForecastRequest{Cutoff: cutoff, HorizonDays: 7, SiteIDs: []string{"B"}})
	require.NoError(t, err)
	require.Len(t, rates, model.DaysPerWeek)
	for _, r := range rates {
		assert.Equal(t, model.SourceOwn, r.Source)
		assert.InDelta(t, 0.2, r.RateM3PerDay, 1e-9)
	}
}

func TestHolidayAdjustment(t *testing.T) {
	cal := staticCalendar{day: model.MustDay("2025-03-08")}
	svc := NewService(store.NewLayer(fixtureStore(), nil), Options{
		HolidayAdjust: true,
		Calendar:      cal,
	}, logger.NopLogger{}, nil)
	rates, err := svc.Rates(context.Background(), model.ForecastRequest{Cutoff: cutoff, HorizonDays: 7, SiteIDs: []string{"A"}})
	require.NoError(t, err)
	for _, r := range rates {
		want := 0.1
		if r.Weekday == model.Saturday {
			want *= 1.15
		}
		assert.InDelta(t, want, r.RateM3PerDay, 1e-9, r.Weekday.String())
	}
}

type staticCalendar struct{ day time.Time }

func (c staticCalendar) IsHoliday(d time.Time) bool { return model.Day(d).Equal(c.day) }
