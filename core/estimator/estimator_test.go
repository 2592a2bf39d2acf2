package estimator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fillcast/core/model"
)

func weekly(site string, first time.Time, until time.Time, volume float64) []model.ServiceEvent {
	var ev []model.ServiceEvent
	for d := first; !d.After(until); d = model.AddDays(d, 7) {
		ev = append(ev, model.ServiceEvent{SiteID: site, Date: d, VolumeM3: volume})
	}
	return ev
}

func byWeekday(rows []model.WeekdayRate, site string) map[model.Weekday]model.WeekdayRate {
	out := map[model.Weekday]model.WeekdayRate{}
	for _, r := range rows {
		if r.SiteID == site {
			out[r.Weekday] = r
		}
	}
	return out
}

func TestWeeklyEventsGiveUniformRate(t *testing.T) {
	cutoff := model.MustDay("2025-03-02")
	for _, window := range []int{28, 56, 84} {
		start := WindowStart(cutoff, window)
		events := weekly("A", model.AddDays(start, 6), cutoff, 2.8)
		rows := Estimate(events, cutoff, Config{WindowDays: window})
		require.Len(t, rows, 7, "window %d", window)
		for _, r := range rows {
			assert.InDelta(t, 0.4, r.RateM3PerDay, 1e-12, "window %d weekday %s", window, r.Weekday)
			assert.Equal(t, model.SourceOwn, r.Source)
			assert.Equal(t, window/7, r.Observations)
		}
	}
}

func TestSparseWeekdaysUseEventLevelMean(t *testing.T) {
	cutoff := model.MustDay("2025-03-02")
	start := WindowStart(cutoff, 56)
	events := []model.ServiceEvent{
		// first event: gap is bounded by the 3 window days elapsed
		{SiteID: "A", Date: model.AddDays(start, 2), VolumeM3: 3},
		{SiteID: "A", Date: model.AddDays(start, 4), VolumeM3: 4},
	}
	rows := Estimate(events, cutoff, Config{})
	require.Len(t, rows, 7)
	eventMean := (3.0/3 + 4.0/2) / 2
	dayWeighted := (3*1.0 + 2*2.0) / 5
	for _, r := range rows {
		assert.Equal(t, model.SourceOverallMean, r.Source)
		assert.InDelta(t, eventMean, r.RateM3PerDay, 1e-12)
		assert.NotEqual(t, dayWeighted, r.RateM3PerDay)
	}
}

func TestMixedOwnAndFallback(t *testing.T) {
	cutoff := model.MustDay("2025-03-03") // Monday
	start := WindowStart(cutoff, 14)      // Tuesday
	events := []model.ServiceEvent{
		// covers the first seven window days once
		{SiteID: "A", Date: model.AddDays(start, 6), VolumeM3: 7},
		// covers Tue..Thu a second time
		{SiteID: "A", Date: model.AddDays(start, 9), VolumeM3: 9},
	}
	rows := byWeekday(Estimate(events, cutoff, Config{WindowDays: 14, MinObs: 2}), "A")
	require.Len(t, rows, 7)
	for _, w := range []model.Weekday{model.Tuesday, model.Wednesday, model.Thursday} {
		assert.Equal(t, model.SourceOwn, rows[w].Source, w.String())
		assert.Equal(t, 2, rows[w].Observations)
	}
	for _, w := range []model.Weekday{model.Monday, model.Friday, model.Saturday, model.Sunday} {
		assert.Equal(t, model.SourceOverallMean, rows[w].Source, w.String())
		assert.InDelta(t, 2.0, rows[w].RateM3PerDay, 1e-12)
	}
}

func TestBlendedUsesNeighbours(t *testing.T) {
	cutoff := model.MustDay("2025-03-02") // Sunday
	start := WindowStart(cutoff, 28)
	var events []model.ServiceEvent
	// services every Monday and Tuesday: only those weekdays collect four
	// samples, the rest of the week three.
	for d := model.AddDays(start, 1); !d.After(cutoff); d = model.AddDays(d, 1) {
		if w := model.WeekdayOf(d); w == model.Monday || w == model.Tuesday {
			events = append(events, model.ServiceEvent{SiteID: "A", Date: d, VolumeM3: 1})
		}
	}
	plain := byWeekday(Estimate(events, cutoff, Config{WindowDays: 28, MinObs: 4}), "A")
	blended := byWeekday(Estimate(events, cutoff, Config{WindowDays: 28, MinObs: 4, Blended: true}), "A")

	assert.Equal(t, model.SourceOwn, blended[model.Monday].Source)
	assert.Equal(t, model.SourceNeighbor, blended[model.Wednesday].Source)
	assert.Equal(t, model.SourceOverallMean, plain[model.Wednesday].Source)
	// Thursday's nearest qualifying weekday is two days away.
	assert.Equal(t, model.SourceNeighbor, blended[model.Thursday].Source)
	// Friday is three days from Tuesday and four from Monday.
	assert.Equal(t, model.SourceOverallMean, blended[model.Friday].Source)

	overall := plain[model.Friday].RateM3PerDay
	want := 0.5*blended[model.Tuesday].RateM3PerDay + 0.5*overall
	assert.InDelta(t, want, blended[model.Wednesday].RateM3PerDay, 1e-12)
}

func TestEventsOutsideWindowAndUnknownVolumesIgnored(t *testing.T) {
	cutoff := model.MustDay("2025-03-02")
	events := []model.ServiceEvent{
		{SiteID: "old", Date: model.MustDay("2024-01-01"), VolumeM3: 5},
		{SiteID: "future", Date: model.AddDays(cutoff, 1), VolumeM3: 5},
		{SiteID: "nan", Date: cutoff, VolumeM3: math.NaN()},
		{SiteID: "neg", Date: cutoff, VolumeM3: -1},
	}
	assert.Empty(t, Estimate(events, cutoff, Config{}))
}

func TestUnknownVolumeStillResetsInterval(t *testing.T) {
	cutoff := model.MustDay("2025-03-02")
	events := []model.ServiceEvent{
		{SiteID: "A", Date: model.AddDays(cutoff, -10), VolumeM3: math.NaN()},
		{SiteID: "A", Date: model.AddDays(cutoff, -5), VolumeM3: 5},
	}
	rows := Estimate(events, cutoff, Config{MinObs: 1})
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.InDelta(t, 1.0, r.RateM3PerDay, 1e-12)
	}
}

func TestSameDayEventsAreMerged(t *testing.T) {
	cutoff := model.MustDay("2025-03-02")
	start := WindowStart(cutoff, 7)
	events := []model.ServiceEvent{
		{SiteID: "A", Date: model.AddDays(start, 6), VolumeM3: 4},
		{SiteID: "A", Date: model.AddDays(start, 6), VolumeM3: 3},
	}
	rows := Estimate(events, cutoff, Config{WindowDays: 7, MinObs: 1})
	require.Len(t, rows, 7)
	assert.InDelta(t, 1.0, rows[0].RateM3PerDay, 1e-12)
}
