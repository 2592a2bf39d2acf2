package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fillcast/core/metrics"
	"github.com/kilianp07/fillcast/core/model"
)

// OverallScope labels whole-run backtest gauges.
const OverallScope = "overall"

// PromSink records forecast activity in Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	points   prometheus.Gauge
	cacheOps *prometheus.CounterVec
	wape     *prometheus.GaugeVec
	coverage *prometheus.GaugeVec
}

// NewPromSink registers forecast metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fillcast_forecast_runs_total",
		Help: "Total number of forecast runs",
	}, []string{"cached", "filtered"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fillcast_forecast_duration_seconds",
		Help:    "Time spent serving a forecast request",
		Buckets: prometheus.DefBuckets,
	}, []string{"cached"}))
	if err != nil {
		return nil, err
	}
	points, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fillcast_forecast_points",
		Help: "Number of points returned by the last forecast run",
	}))
	if err != nil {
		return nil, err
	}
	cacheOps, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fillcast_cache_operations_total",
		Help: "Forecast cache operations by outcome",
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	wape, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fillcast_backtest_wape_percent",
		Help: "Weighted absolute percentage error of the last backtest",
	}, []string{"scope"}))
	if err != nil {
		return nil, err
	}
	coverage, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fillcast_backtest_coverage_percent",
		Help: "Share of forecast rows with an observed actual in the last backtest",
	}, []string{"scope"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{runs: runs, duration: duration, points: points, cacheOps: cacheOps, wape: wape, coverage: coverage}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordForecastRun counts the run and observes its duration.
func (s *PromSink) RecordForecastRun(ev coremetrics.ForecastRunEvent) error {
	cached := strconv.FormatBool(ev.Cached)
	s.runs.WithLabelValues(cached, strconv.FormatBool(ev.Filtered)).Inc()
	s.duration.WithLabelValues(cached).Observe(ev.Duration.Seconds())
	s.points.Set(float64(ev.Points))
	return nil
}

// RecordCacheEvent counts cache operations by outcome.
func (s *PromSink) RecordCacheEvent(ev coremetrics.CacheEvent) error {
	s.cacheOps.WithLabelValues(ev.Op).Add(float64(ev.Count))
	return nil
}

// RecordBacktest publishes accuracy gauges per cutoff and overall. Cutoffs
// without a valid WAPE only update coverage.
func (s *PromSink) RecordBacktest(evs []coremetrics.BacktestEvent) error {
	for _, ev := range evs {
		scope := OverallScope
		if !ev.Cutoff.IsZero() {
			scope = ev.Cutoff.Format(model.DateLayout)
		}
		s.coverage.WithLabelValues(scope).Set(ev.CoveragePct)
		if ev.WAPEValid {
			s.wape.WithLabelValues(scope).Set(ev.WAPE)
		}
	}
	return nil
}
