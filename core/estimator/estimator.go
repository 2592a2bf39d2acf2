// Package estimator converts irregular service events into a dense
// per-weekday accumulation-rate table per site.
//
// Each event's volume is spread evenly over the days elapsed since the
// previous service and attributed to the weekday each of those days fell on.
// Weekdays with too few attributed samples fall back to the site's
// event-level mean rate, or, in blended mode, to a mix of a neighbouring
// weekday and that mean. Every row records which path produced it.
package estimator

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fillcast/core/model"
)

const (
	// DefaultWindowDays is the length of the training window.
	DefaultWindowDays = 56
	// DefaultMinObs is the number of attributed samples a weekday needs to
	// use its own mean.
	DefaultMinObs = 4
	// maxFirstGapDays bounds the assumed interval before the first event.
	maxFirstGapDays = 7
	neighborWeight  = 0.5
	maxNeighborDist = 2
)

// Config parameterises the estimator.
type Config struct {
	WindowDays int  `json:"window_days"`
	MinObs     int  `json:"min_obs"`
	Blended    bool `json:"blended"`
}

func (c Config) withDefaults() Config {
	if c.WindowDays <= 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.MinObs <= 0 {
		c.MinObs = DefaultMinObs
	}
	return c
}

// WindowStart returns the first day of the training window ending at cutoff.
func WindowStart(cutoff time.Time, windowDays int) time.Time {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return model.AddDays(cutoff, -(windowDays - 1))
}

type accumulator struct {
	byWeekday [model.DaysPerWeek][]float64
	perEvent  []float64
}

// Estimate returns weekday rates for every site with at least one qualifying
// event in [cutoff-WindowDays+1, cutoff], sorted by site and weekday.
func Estimate(events []model.ServiceEvent, cutoff time.Time, cfg Config) []model.WeekdayRate {
	cfg = cfg.withDefaults()
	cutoff = model.Day(cutoff)
	start := WindowStart(cutoff, cfg.WindowDays)

	bySite := make(map[string][]model.ServiceEvent)
	for _, e := range events {
		d := model.Day(e.Date)
		if d.Before(start) || d.After(cutoff) {
			continue
		}
		e.Date = d
		bySite[e.SiteID] = append(bySite[e.SiteID], e)
	}

	sites := make([]string, 0, len(bySite))
	for id := range bySite {
		sites = append(sites, id)
	}
	sort.Strings(sites)

	var rows []model.WeekdayRate
	for _, id := range sites {
		acc := attribute(mergeSameDay(bySite[id]), start)
		if len(acc.perEvent) == 0 {
			continue
		}
		rows = append(rows, acc.rates(id, cfg)...)
	}
	return rows
}

// mergeSameDay sorts events by date and sums volumes recorded on one day.
// An unknown volume on a day makes the whole day unknown.
func mergeSameDay(events []model.ServiceEvent) []model.ServiceEvent {
	sorted := append([]model.ServiceEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	var out []model.ServiceEvent
	for _, e := range sorted {
		if n := len(out); n > 0 && out[n-1].Date.Equal(e.Date) {
			out[n-1].VolumeM3 += e.VolumeM3
			continue
		}
		out = append(out, e)
	}
	return out
}

func knownVolume(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func attribute(events []model.ServiceEvent, windowStart time.Time) *accumulator {
	acc := &accumulator{}
	var prev time.Time
	for i, e := range events {
		var gap int
		if i == 0 {
			gap = min(maxFirstGapDays, model.DaysBetween(windowStart, e.Date)+1)
		} else {
			gap = model.DaysBetween(prev, e.Date)
		}
		gap = max(gap, 1)
		prev = e.Date
		if !knownVolume(e.VolumeM3) {
			continue
		}
		rate := e.VolumeM3 / float64(gap)
		acc.perEvent = append(acc.perEvent, rate)
		for k := 0; k < gap; k++ {
			day := model.AddDays(e.Date, -k)
			w := model.WeekdayOf(day)
			acc.byWeekday[w] = append(acc.byWeekday[w], rate)
		}
	}
	return acc
}

func (a *accumulator) rates(siteID string, cfg Config) []model.WeekdayRate {
	overall := stat.Mean(a.perEvent, nil)
	rows := make([]model.WeekdayRate, 0, model.DaysPerWeek)
	for w := model.Weekday(0); w < model.DaysPerWeek; w++ {
		obs := a.byWeekday[w]
		row := model.WeekdayRate{SiteID: siteID, Weekday: w, Observations: len(obs)}
		switch {
		case len(obs) >= cfg.MinObs:
			row.RateM3PerDay = stat.Mean(obs, nil)
			row.Source = model.SourceOwn
		case cfg.Blended:
			if nb, ok := a.neighborRate(w, cfg.MinObs); ok {
				row.RateM3PerDay = neighborWeight*nb + (1-neighborWeight)*overall
				row.Source = model.SourceNeighbor
				break
			}
			fallthrough
		default:
			row.RateM3PerDay = overall
			row.Source = model.SourceOverallMean
		}
		rows = append(rows, row)
	}
	return rows
}

// neighborRate returns the mean own-rate of the closest qualifying weekdays,
// looking one then two days away in both directions.
func (a *accumulator) neighborRate(w model.Weekday, minObs int) (float64, bool) {
	for d := 1; d <= maxNeighborDist; d++ {
		var means []float64
		for _, n := range []model.Weekday{w.Shift(-d), w.Shift(d)} {
			if obs := a.byWeekday[n]; len(obs) >= minObs {
				means = append(means, stat.Mean(obs, nil))
			}
		}
		if len(means) > 0 {
			return stat.Mean(means, nil), true
		}
	}
	return 0, false
}
