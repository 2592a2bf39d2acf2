package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	// MinHorizonDays and MaxHorizonDays bound the forecast length.
	MinHorizonDays = 1
	MaxHorizonDays = 365
)

// ErrInvalidRequest marks a forecast request rejected before any I/O.
var ErrInvalidRequest = errors.New("invalid forecast request")

// ForecastRequest asks for a forecast starting the day after Cutoff.
type ForecastRequest struct {
	Cutoff      time.Time
	HorizonDays int
	SiteIDs     []string
	District    string
	Search      string
}

// Validate checks the cutoff against maxCutoff and the horizon bounds.
func (r ForecastRequest) Validate(maxCutoff time.Time) error {
	if r.Cutoff.IsZero() {
		return fmt.Errorf("%w: cutoff_date is required", ErrInvalidRequest)
	}
	if !maxCutoff.IsZero() && Day(r.Cutoff).After(Day(maxCutoff)) {
		return fmt.Errorf("%w: cutoff_date %s is after max cutoff %s",
			ErrInvalidRequest, r.Cutoff.Format(DateLayout), maxCutoff.Format(DateLayout))
	}
	if r.HorizonDays < MinHorizonDays || r.HorizonDays > MaxHorizonDays {
		return fmt.Errorf("%w: horizon_days must be between %d and %d, got %d",
			ErrInvalidRequest, MinHorizonDays, MaxHorizonDays, r.HorizonDays)
	}
	return nil
}

// Start returns the first forecast day.
func (r ForecastRequest) Start() time.Time { return AddDays(r.Cutoff, 1) }

// End returns the last forecast day.
func (r ForecastRequest) End() time.Time { return AddDays(r.Cutoff, r.HorizonDays) }

// ForecastPoint is the simulated state of a site on one day.
type ForecastPoint struct {
	SiteID       string    `json:"site_id"`
	Date         time.Time `json:"date"`
	FillPct      float64   `json:"fill_pct"`
	PredVolumeM3 float64   `json:"pred_volume_m3"`
	// OverflowProb is a 0/1 threshold indicator, not a probability.
	OverflowProb float64 `json:"overflow_prob"`
}

// SortPoints orders points by site then date, in place.
func SortPoints(points []ForecastPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].SiteID != points[j].SiteID {
			return points[i].SiteID < points[j].SiteID
		}
		return points[i].Date.Before(points[j].Date)
	})
}

// CountSites returns the number of distinct sites in points.
func CountSites(points []ForecastPoint) int {
	seen := make(map[string]struct{})
	for _, p := range points {
		seen[p.SiteID] = struct{}{}
	}
	return len(seen)
}
