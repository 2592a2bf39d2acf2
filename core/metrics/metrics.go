package metrics

import "time"

// ForecastRunEvent describes one orchestrator run.
type ForecastRunEvent struct {
	Cutoff      time.Time
	HorizonDays int
	Cached      bool
	Filtered    bool
	Sites       int
	Points      int
	Duration    time.Duration
	Time        time.Time
}

// MetricsSink records forecast runs for observability purposes.
type MetricsSink interface {
	RecordForecastRun(ev ForecastRunEvent) error
}

// Cache operations reported through CacheEvent.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStore = "store"
	CacheError = "error"
	CacheClear = "clear"
)

// CacheEvent captures a forecast cache operation.
type CacheEvent struct {
	Op    string
	Count int
	Time  time.Time
}

// CacheRecorder records cache activity.
type CacheRecorder interface {
	RecordCacheEvent(ev CacheEvent) error
}

// BacktestEvent holds accuracy figures for one cutoff, or for a whole run
// when Cutoff is zero.
type BacktestEvent struct {
	RunID       string
	Cutoff      time.Time
	HorizonDays int
	WAPE        float64
	WAPEValid   bool
	CoveragePct float64
	MAE         float64
	Rows        int
	Matched     int
	Time        time.Time
}

// BacktestRecorder records backtest accuracy.
type BacktestRecorder interface {
	RecordBacktest(evs []BacktestEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordForecastRun(ForecastRunEvent) error { return nil }
func (NopSink) RecordCacheEvent(CacheEvent) error        { return nil }
func (NopSink) RecordBacktest([]BacktestEvent) error     { return nil }
