package model

import "sort"

// RateSource records how a weekday rate was obtained.
type RateSource int

const (
	// SourceOwn means enough observations existed for the weekday itself.
	SourceOwn RateSource = iota
	// SourceNeighbor means the rate blends an adjacent qualifying weekday
	// with the site's overall mean.
	SourceNeighbor
	// SourceOverallMean means the site's event-level mean rate was used.
	SourceOverallMean
)

func (s RateSource) String() string {
	switch s {
	case SourceOwn:
		return "own"
	case SourceNeighbor:
		return "neighbor"
	case SourceOverallMean:
		return "overall_mean"
	default:
		return "unknown"
	}
}

// MarshalText encodes the source by name.
func (s RateSource) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// WeekdayRate is the estimated accumulation rate of a site on a weekday.
type WeekdayRate struct {
	SiteID       string     `json:"site_id"`
	Weekday      Weekday    `json:"weekday"`
	RateM3PerDay float64    `json:"rate_m3_per_day"`
	Source       RateSource `json:"source"`
	// Observations is the number of attributed day samples for the weekday.
	Observations int `json:"observations"`
}

// RateTable indexes weekday rates by site.
type RateTable map[string]*[DaysPerWeek]float64

// NewRateTable builds a lookup table from rate rows.
func NewRateTable(rows []WeekdayRate) RateTable {
	t := make(RateTable)
	for _, r := range rows {
		w := t[r.SiteID]
		if w == nil {
			w = new([DaysPerWeek]float64)
			t[r.SiteID] = w
		}
		w[r.Weekday] = r.RateM3PerDay
	}
	return t
}

// Rate returns the rate for a site on a weekday, zero when unknown.
func (t RateTable) Rate(siteID string, w Weekday) float64 {
	if r, ok := t[siteID]; ok {
		return r[w]
	}
	return 0
}

// SortRates orders rows by site then weekday, in place.
func SortRates(rows []WeekdayRate) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SiteID != rows[j].SiteID {
			return rows[i].SiteID < rows[j].SiteID
		}
		return rows[i].Weekday < rows[j].Weekday
	})
}
