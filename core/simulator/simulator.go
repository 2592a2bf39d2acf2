// Package simulator walks a date range day by day and accumulates simulated
// volume per site from its weekday rates and container capacity.
package simulator

import (
	"math"
	"time"

	"github.com/kilianp07/fillcast/core/model"
)

const (
	// DefaultOverflowThreshold is the fill level flagged as overflow.
	DefaultOverflowThreshold = 0.8
	// NearCapacityRatio triggers an implicit service when resets are enabled.
	NearCapacityRatio = 0.98
)

// Params configures a simulation run.
type Params struct {
	Registry model.Registry
	Rates    model.RateTable
	Start    time.Time
	End      time.Time
	// DefaultCapacityM3 is used for sites without a positive registry capacity.
	DefaultCapacityM3 float64
	// OverflowThreshold in (0,1]; zero uses DefaultOverflowThreshold.
	OverflowThreshold float64
	// ResetOnNearCapacity empties a site once it reaches 98% of capacity.
	// Only meant for sensitivity analysis.
	ResetOnNearCapacity bool
}

// Simulate emits one point per registry site and day in [Start, End], sorted
// by site then date. The run is deterministic.
func Simulate(p Params) []model.ForecastPoint {
	threshold := p.OverflowThreshold
	if threshold <= 0 {
		threshold = DefaultOverflowThreshold
	}
	start, end := model.Day(p.Start), model.Day(p.End)
	if end.Before(start) {
		return nil
	}
	days := model.DaysBetween(start, end) + 1
	sites := p.Registry.SiteIDs()
	points := make([]model.ForecastPoint, 0, len(sites)*days)
	for _, id := range sites {
		capacity := p.Registry[id].CapacityM3()
		if capacity <= 0 {
			capacity = p.DefaultCapacityM3
		}
		fill := 0.0
		for i := 0; i < days; i++ {
			d := model.AddDays(start, i)
			fill = math.Max(0, fill+p.Rates.Rate(id, model.WeekdayOf(d)))
			if p.ResetOnNearCapacity && capacity > 0 && fill >= NearCapacityRatio*capacity {
				fill = 0
			}
			pct := 0.0
			if capacity > 0 {
				pct = clamp(fill/capacity, 0, 1)
			}
			overflow := 0.0
			if pct >= threshold {
				overflow = 1
			}
			points = append(points, model.ForecastPoint{
				SiteID:       id,
				Date:         d,
				FillPct:      pct,
				PredVolumeM3: fill,
				OverflowProb: overflow,
			})
		}
	}
	return points
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
