// Package alert derives overflow warnings from a simulated forecast.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/fillcast/core/model"
)

// Alert marks the first forecast day a site reaches the threshold.
type Alert struct {
	SiteID       string    `json:"site_id"`
	Date         time.Time `json:"date"`
	FillPct      float64   `json:"fill_pct"`
	PredVolumeM3 float64   `json:"pred_volume_m3"`
}

// Detect returns one alert per site whose fill level reaches threshold,
// ordered by site. A non-positive threshold flags points already marked as
// overflowing by the simulator.
func Detect(points []model.ForecastPoint, threshold float64) []Alert {
	sorted := append([]model.ForecastPoint(nil), points...)
	model.SortPoints(sorted)
	var out []Alert
	done := ""
	for _, p := range sorted {
		if p.SiteID == done {
			continue
		}
		hit := p.OverflowProb >= 1
		if threshold > 0 {
			hit = p.FillPct >= threshold
		}
		if !hit {
			continue
		}
		out = append(out, Alert{SiteID: p.SiteID, Date: p.Date, FillPct: p.FillPct, PredVolumeM3: p.PredVolumeM3})
		done = p.SiteID
	}
	return out
}

// Notifier delivers alerts and reports how many were sent.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) (int, error)
}

// NopNotifier drops alerts.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, []Alert) (int, error) { return 0, nil }

// Recorder keeps delivered alerts in memory.
type Recorder struct {
	mu     sync.Mutex
	Alerts []Alert
}

func (r *Recorder) Notify(_ context.Context, alerts []Alert) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Alerts = append(r.Alerts, alerts...)
	return len(alerts), nil
}
