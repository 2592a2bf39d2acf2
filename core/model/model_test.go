package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdayOfIsMondayBased(t *testing.T) {
	// 2024-01-01 was a Monday.
	mon := MustDay("2024-01-01")
	for i := 0; i < 7; i++ {
		assert.Equal(t, Weekday(i), WeekdayOf(AddDays(mon, i)))
	}
	assert.Equal(t, Sunday, Monday.Shift(-1))
	assert.Equal(t, Tuesday, Sunday.Shift(2))
}

func TestDaysBetween(t *testing.T) {
	a := MustDay("2024-02-27")
	b := MustDay("2024-03-02")
	assert.Equal(t, 4, DaysBetween(a, b))
	assert.Equal(t, -4, DaysBetween(b, a))
}

func TestRegistryEntryCapacity(t *testing.T) {
	e := RegistryEntry{SiteID: "A", BinCount: 3, BinSizeLiters: 800}
	assert.InDelta(t, 2.4, e.CapacityM3(), 1e-9)

	p := PlaceholderEntry("B")
	assert.Equal(t, UnknownDistrict, p.District)
	assert.InDelta(t, 1.1, p.CapacityM3(), 1e-9)

	n := RegistryEntry{SiteID: "C"}.Normalize()
	assert.Equal(t, 1, n.BinCount)
	assert.Equal(t, DefaultBinSizeLiters, n.BinSizeLiters)
}

func TestRegistryEnsureSites(t *testing.T) {
	r := Registry{"A": {SiteID: "A", District: "North", BinCount: 2, BinSizeLiters: 1100}}
	r.EnsureSites([]string{"A", "B"})
	assert.Equal(t, "North", r["A"].District)
	assert.Equal(t, PlaceholderEntry("B"), r["B"])
	assert.Equal(t, []string{"A", "B"}, r.SiteIDs())
}

func TestRateTableDefaultsToZero(t *testing.T) {
	tbl := NewRateTable([]WeekdayRate{{SiteID: "A", Weekday: Friday, RateM3PerDay: 0.3}})
	assert.Equal(t, 0.3, tbl.Rate("A", Friday))
	assert.Zero(t, tbl.Rate("A", Monday))
	assert.Zero(t, tbl.Rate("missing", Friday))
}

func TestForecastRequestHorizonBoundary(t *testing.T) {
	maxCutoff := MustDay("2025-06-30")
	cutoff := MustDay("2025-06-01")
	cases := []struct {
		horizon int
		ok      bool
	}{
		{0, false},
		{1, true},
		{365, true},
		{366, false},
	}
	for _, c := range cases {
		err := ForecastRequest{Cutoff: cutoff, HorizonDays: c.horizon}.Validate(maxCutoff)
		if c.ok {
			assert.NoError(t, err, "horizon %d", c.horizon)
		} else {
			require.Error(t, err, "horizon %d", c.horizon)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		}
	}
}

func TestForecastRequestCutoffBoundary(t *testing.T) {
	maxCutoff := MustDay("2025-06-30")
	assert.NoError(t, ForecastRequest{Cutoff: maxCutoff, HorizonDays: 7}.Validate(maxCutoff))
	err := ForecastRequest{Cutoff: AddDays(maxCutoff, 1), HorizonDays: 7}.Validate(maxCutoff)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, ForecastRequest{HorizonDays: 7}.Validate(maxCutoff), ErrInvalidRequest)
}

func TestForecastRequestWindow(t *testing.T) {
	r := ForecastRequest{Cutoff: time.Date(2025, 1, 31, 15, 0, 0, 0, time.UTC), HorizonDays: 3}
	assert.Equal(t, MustDay("2025-02-01"), r.Start())
	assert.Equal(t, MustDay("2025-02-03"), r.End())
}

func TestSortEventsAndGroup(t *testing.T) {
	events := []ServiceEvent{
		{SiteID: "B", Date: MustDay("2025-01-02")},
		{SiteID: "A", Date: MustDay("2025-01-03")},
		{SiteID: "A", Date: MustDay("2025-01-01")},
	}
	SortEvents(events)
	assert.Equal(t, "A", events[0].SiteID)
	assert.Equal(t, MustDay("2025-01-01"), events[0].Date)
	assert.Equal(t, []string{"A", "B"}, SiteIDs(events))
	assert.Len(t, GroupBySite(events)["A"], 2)
}
