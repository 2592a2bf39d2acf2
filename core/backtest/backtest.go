// Package backtest replays the forecaster at historical cutoffs and compares
// predicted daily volume increments with the volumes actually collected.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fillcast/core/forecast"
	"github.com/kilianp07/fillcast/core/logger"
	"github.com/kilianp07/fillcast/core/metrics"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/core/store"
)

// ErrNoCutoffs is returned by Run when the configuration lists no cutoff.
var ErrNoCutoffs = errors.New("backtest: at least one cutoff is required")

// EventLoader reads service events; store.Source and store.Access satisfy it.
type EventLoader interface {
	LoadServiceEvents(ctx context.Context, q store.EventQuery) ([]model.ServiceEvent, error)
}

// Config selects the cutoffs and filters to evaluate.
type Config struct {
	Cutoffs     []time.Time
	HorizonDays int
	SiteIDs     []string
	District    string
	Search      string
	// Progress is called after each cutoff when set.
	Progress func(done, total int)
}

// Row compares one forecast day with the observed volume.
type Row struct {
	Cutoff    time.Time `json:"cutoff"`
	SiteID    string    `json:"site_id"`
	Date      time.Time `json:"date"`
	PredDelta float64   `json:"pred_delta_m3"`
	Actual    *float64  `json:"actual_m3,omitempty"`
	ErrorPct  *float64  `json:"error_pct,omitempty"`
}

// CutoffSummary holds the metrics of a single cutoff.
type CutoffSummary struct {
	Cutoff time.Time `json:"cutoff"`
	Metrics
}

// SiteSummary holds the metrics of a single site across all cutoffs.
type SiteSummary struct {
	SiteID string `json:"site_id"`
	Metrics
}

// Report is the outcome of a backtest run.
type Report struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	HorizonDays int             `json:"horizon_days"`
	Overall     Metrics         `json:"overall"`
	Cutoffs     []CutoffSummary `json:"cutoffs"`
	Sites       []SiteSummary   `json:"sites"`
	Rows        []Row           `json:"rows,omitempty"`
}

// Engine runs backtests.
type Engine struct {
	Forecaster forecast.Forecaster
	Source     EventLoader
	Sink       metrics.MetricsSink
	Log        logger.Logger
}

// Run evaluates every cutoff in cfg in order.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Report, error) {
	if len(cfg.Cutoffs) == 0 {
		return nil, ErrNoCutoffs
	}
	rep := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		HorizonDays: cfg.HorizonDays,
	}
	for i, c := range cfg.Cutoffs {
		rows, err := e.runCutoff(ctx, cfg, model.Day(c))
		if err != nil {
			return nil, err
		}
		rep.Rows = append(rep.Rows, rows...)
		rep.Cutoffs = append(rep.Cutoffs, CutoffSummary{Cutoff: model.Day(c), Metrics: Summarize(rows)})
		if cfg.Progress != nil {
			cfg.Progress(i+1, len(cfg.Cutoffs))
		}
	}
	rep.Overall = Summarize(rep.Rows)
	rep.Sites = siteSummaries(rep.Rows)
	e.record(rep)
	return rep, nil
}

func (e *Engine) runCutoff(ctx context.Context, cfg Config, cutoff time.Time) ([]Row, error) {
	req := model.ForecastRequest{
		Cutoff:      cutoff,
		HorizonDays: cfg.HorizonDays,
		SiteIDs:     cfg.SiteIDs,
		District:    cfg.District,
		Search:      cfg.Search,
	}
	res, err := e.Forecaster.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("backtest cutoff %s: %w", cutoff.Format(model.DateLayout), err)
	}
	events, err := e.Source.LoadServiceEvents(ctx, store.Between(req.Start(), req.End()).WithSites(cfg.SiteIDs))
	if err != nil {
		return nil, fmt.Errorf("backtest actuals %s: %w", cutoff.Format(model.DateLayout), err)
	}
	actuals := sumActuals(events)

	points := append([]model.ForecastPoint(nil), res.Points...)
	model.SortPoints(points)
	rows := make([]Row, 0, len(points))
	prevSite, prevVol := "", 0.0
	for _, p := range points {
		delta := p.PredVolumeM3
		if p.SiteID == prevSite {
			delta = p.PredVolumeM3 - prevVol
		}
		prevSite, prevVol = p.SiteID, p.PredVolumeM3

		row := Row{Cutoff: cutoff, SiteID: p.SiteID, Date: p.Date, PredDelta: delta}
		if a, ok := actuals[actualKey{p.SiteID, model.Day(p.Date)}]; ok {
			row.Actual = &a
			if a > 0 {
				pct := math.Abs(delta-a) / a * 100
				row.ErrorPct = &pct
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type actualKey struct {
	site string
	day  time.Time
}

func sumActuals(events []model.ServiceEvent) map[actualKey]float64 {
	out := make(map[actualKey]float64)
	for _, ev := range events {
		if math.IsNaN(ev.VolumeM3) || ev.VolumeM3 < 0 {
			continue
		}
		out[actualKey{ev.SiteID, model.Day(ev.Date)}] += ev.VolumeM3
	}
	return out
}

func siteSummaries(rows []Row) []SiteSummary {
	bySite := make(map[string][]Row)
	for _, r := range rows {
		bySite[r.SiteID] = append(bySite[r.SiteID], r)
	}
	out := make([]SiteSummary, 0, len(bySite))
	for id, rs := range bySite {
		out = append(out, SiteSummary{SiteID: id, Metrics: Summarize(rs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out
}

func (e *Engine) record(rep *Report) {
	rec, ok := e.Sink.(metrics.BacktestRecorder)
	if !ok {
		return
	}
	evs := make([]metrics.BacktestEvent, 0, len(rep.Cutoffs)+1)
	for _, c := range rep.Cutoffs {
		evs = append(evs, backtestEvent(rep, c.Cutoff, c.Metrics))
	}
	evs = append(evs, backtestEvent(rep, time.Time{}, rep.Overall))
	if err := rec.RecordBacktest(evs); err != nil && e.Log != nil {
		e.Log.Warnf("record backtest %s: %v", rep.RunID, err)
	}
}

func backtestEvent(rep *Report, cutoff time.Time, m Metrics) metrics.BacktestEvent {
	return metrics.BacktestEvent{
		RunID:       rep.RunID,
		Cutoff:      cutoff,
		HorizonDays: rep.HorizonDays,
		WAPE:        m.WAPE,
		WAPEValid:   m.WAPEValid,
		CoveragePct: m.CoveragePct,
		MAE:         m.MAE,
		Rows:        m.Rows,
		Matched:     m.Matched,
		Time:        rep.GeneratedAt,
	}
}
