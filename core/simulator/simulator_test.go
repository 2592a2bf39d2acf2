package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fillcast/core/model"
)

func uniformRates(site string, rate float64) model.RateTable {
	var rows []model.WeekdayRate
	for w := model.Weekday(0); w < model.DaysPerWeek; w++ {
		rows = append(rows, model.WeekdayRate{SiteID: site, Weekday: w, RateM3PerDay: rate})
	}
	return model.NewRateTable(rows)
}

func TestSimulateMonotonicAndBounded(t *testing.T) {
	reg := model.Registry{"A": {SiteID: "A", BinCount: 1, BinSizeLiters: 1000}}
	points := Simulate(Params{
		Registry: reg,
		Rates:    uniformRates("A", 0.3),
		Start:    model.MustDay("2025-01-01"),
		End:      model.MustDay("2025-01-10"),
	})
	require.Len(t, points, 10)
	prev := -1.0
	for i, p := range points {
		assert.GreaterOrEqual(t, p.PredVolumeM3, prev)
		prev = p.PredVolumeM3
		assert.GreaterOrEqual(t, p.FillPct, 0.0)
		assert.LessOrEqual(t, p.FillPct, 1.0)
		assert.InDelta(t, 0.3*float64(i+1), p.PredVolumeM3, 1e-9)
	}
	// volume exceeds capacity from day 4 on but fill stays clamped
	assert.Equal(t, 1.0, points[9].FillPct)
	assert.Greater(t, points[9].PredVolumeM3, 1.0)
}

func TestSimulateOverflowIndicator(t *testing.T) {
	reg := model.Registry{"A": {SiteID: "A", BinCount: 1, BinSizeLiters: 1000}}
	points := Simulate(Params{
		Registry:          reg,
		Rates:             uniformRates("A", 0.25),
		Start:             model.MustDay("2025-01-01"),
		End:               model.MustDay("2025-01-04"),
		OverflowThreshold: 0.75,
	})
	got := []float64{}
	for _, p := range points {
		got = append(got, p.OverflowProb)
	}
	assert.Equal(t, []float64{0, 0, 1, 1}, got)
}

func TestSimulateDefaultCapacityAndUnknownRates(t *testing.T) {
	reg := model.Registry{
		"A": {SiteID: "A", BinCount: 0, BinSizeLiters: 0},
		"B": model.PlaceholderEntry("B"),
	}
	points := Simulate(Params{
		Registry:          reg,
		Rates:             uniformRates("A", 1),
		Start:             model.MustDay("2025-01-01"),
		End:               model.MustDay("2025-01-02"),
		DefaultCapacityM3: 4,
	})
	require.Len(t, points, 4)
	assert.Equal(t, "A", points[0].SiteID)
	assert.InDelta(t, 0.25, points[0].FillPct, 1e-12)
	assert.Equal(t, "B", points[2].SiteID)
	assert.Zero(t, points[3].PredVolumeM3)
	assert.Zero(t, points[3].FillPct)
}

func TestSimulateZeroCapacity(t *testing.T) {
	reg := model.Registry{"A": {SiteID: "A"}}
	points := Simulate(Params{
		Registry: reg,
		Rates:    uniformRates("A", 1),
		Start:    model.MustDay("2025-01-01"),
		End:      model.MustDay("2025-01-01"),
	})
	require.Len(t, points, 1)
	assert.Zero(t, points[0].FillPct)
	assert.Zero(t, points[0].OverflowProb)
}

func TestSimulateResetOnNearCapacity(t *testing.T) {
	reg := model.Registry{"A": {SiteID: "A", BinCount: 1, BinSizeLiters: 1000}}
	points := Simulate(Params{
		Registry:            reg,
		Rates:               uniformRates("A", 0.5),
		Start:               model.MustDay("2025-01-01"),
		End:                 model.MustDay("2025-01-04"),
		ResetOnNearCapacity: true,
	})
	vols := []float64{}
	for _, p := range points {
		vols = append(vols, p.PredVolumeM3)
	}
	assert.Equal(t, []float64{0.5, 0, 0.5, 0}, vols)
}

func TestSimulateEmptyRange(t *testing.T) {
	assert.Empty(t, Simulate(Params{
		Registry: model.Registry{"A": model.PlaceholderEntry("A")},
		Start:    model.MustDay("2025-01-02"),
		End:      model.MustDay("2025-01-01"),
	}))
}
