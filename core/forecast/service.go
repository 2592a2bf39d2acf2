package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/fillcast/core/cache"
	"github.com/kilianp07/fillcast/core/estimator"
	"github.com/kilianp07/fillcast/core/holiday"
	"github.com/kilianp07/fillcast/core/logger"
	"github.com/kilianp07/fillcast/core/metrics"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/core/simulator"
	"github.com/kilianp07/fillcast/core/store"
)

// DefaultCapacityM3 is the capacity of a single default-size bin.
const DefaultCapacityM3 = model.DefaultBinSizeLiters / 1000

// ErrInvalidRequest is returned by Run for requests rejected before any I/O.
var ErrInvalidRequest = model.ErrInvalidRequest

// Options tunes the forecasting pipeline.
type Options struct {
	// MaxCutoff is the latest accepted cutoff; zero disables the check.
	MaxCutoff time.Time
	Estimator estimator.Config

	HolidayAdjust     bool
	HolidayMultiplier float64
	Calendar          holiday.Calendar

	DefaultCapacityM3   float64
	OverflowThreshold   float64
	ResetOnNearCapacity bool
}

// Result is the outcome of a forecast run.
type Result struct {
	Cutoff    time.Time             `json:"cutoff"`
	Start     time.Time             `json:"start"`
	End       time.Time             `json:"end"`
	SiteCount int                   `json:"site_count"`
	Cached    bool                  `json:"cached"`
	Points    []model.ForecastPoint `json:"points"`
}

// Forecaster is implemented by Service; the backtest engine and the HTTP
// layer depend on it.
type Forecaster interface {
	Run(ctx context.Context, req model.ForecastRequest) (*Result, error)
}

// Service orchestrates data access, rate estimation, simulation and caching.
type Service struct {
	access store.Access
	opts   Options
	log    logger.Logger
	sink   metrics.MetricsSink
	now    func() time.Time
}

// NewService creates an orchestrator over access. A nil sink disables metrics.
func NewService(access store.Access, opts Options, log logger.Logger, sink metrics.MetricsSink) *Service {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if opts.DefaultCapacityM3 <= 0 {
		opts.DefaultCapacityM3 = DefaultCapacityM3
	}
	if opts.OverflowThreshold <= 0 {
		opts.OverflowThreshold = simulator.DefaultOverflowThreshold
	}
	if opts.HolidayMultiplier <= 0 {
		opts.HolidayMultiplier = holiday.DefaultMultiplier
	}
	return &Service{access: access, opts: opts, log: log, sink: sink, now: time.Now}
}

// Run executes a forecast request.
func (s *Service) Run(ctx context.Context, req model.ForecastRequest) (*Result, error) {
	if err := req.Validate(s.opts.MaxCutoff); err != nil {
		return nil, err
	}
	began := s.now()
	res := &Result{Cutoff: model.Day(req.Cutoff), Start: req.Start(), End: req.End()}
	filters := cache.Filters{SiteIDs: req.SiteIDs, District: req.District, Search: req.Search}
	key := cache.NewKey(req.Cutoff, res.Start, res.End, filters)

	if entry, ok := s.lookup(ctx, key); ok {
		// the entry may hold a wider site set than requested
		res.Points = filterSites(entry.Points, req.SiteIDs)
		res.SiteCount = model.CountSites(res.Points)
		res.Cached = true
		s.record(req, res, !filters.Empty(), began)
		return res, nil
	}

	points, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}
	if points == nil {
		s.log.Warnf("no service events up to %s, returning empty forecast", res.Cutoff.Format(model.DateLayout))
		res.Points = []model.ForecastPoint{}
		s.record(req, res, !filters.Empty(), began)
		return res, nil
	}
	res.Points = points
	res.SiteCount = model.CountSites(points)
	s.store(ctx, key, points, res.SiteCount)
	s.record(req, res, !filters.Empty(), began)
	return res, nil
}

// Rates estimates weekday rates at cutoff for diagnostics, including the
// holiday adjustment over the given horizon when enabled.
func (s *Service) Rates(ctx context.Context, req model.ForecastRequest) ([]model.WeekdayRate, error) {
	if err := req.Validate(s.opts.MaxCutoff); err != nil {
		return nil, err
	}
	events, err := s.access.LoadServiceEvents(ctx, store.Until(req.Cutoff).WithSites(req.SiteIDs))
	if err != nil {
		return nil, fmt.Errorf("forecast rates: %w", err)
	}
	return s.estimate(events, req), nil
}

// ClearCache removes every cached forecast.
func (s *Service) ClearCache(ctx context.Context) (int, error) {
	n, err := s.access.ClearCache(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	s.recordCache(metrics.CacheClear, n)
	s.log.Infof("cleared %d cached forecasts", n)
	return n, nil
}

func (s *Service) compute(ctx context.Context, req model.ForecastRequest) ([]model.ForecastPoint, error) {
	events, err := s.access.LoadServiceEvents(ctx, store.Until(req.Cutoff).WithSites(req.SiteIDs))
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	reg, err := s.access.LoadRegistry(ctx, req.SiteIDs)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	reg.EnsureSites(model.SiteIDs(events))

	rates := s.estimate(events, req)
	s.log.Debugw("rates estimated", map[string]any{
		"cutoff": req.Cutoff.Format(model.DateLayout),
		"sites":  len(reg),
		"rows":   len(rates),
	})
	points := simulator.Simulate(simulator.Params{
		Registry:            reg,
		Rates:               model.NewRateTable(rates),
		Start:               req.Start(),
		End:                 req.End(),
		DefaultCapacityM3:   s.opts.DefaultCapacityM3,
		OverflowThreshold:   s.opts.OverflowThreshold,
		ResetOnNearCapacity: s.opts.ResetOnNearCapacity,
	})
	points = applyFilters(points, reg, req)
	if points == nil {
		points = []model.ForecastPoint{}
	}
	return points, nil
}

func (s *Service) estimate(events []model.ServiceEvent, req model.ForecastRequest) []model.WeekdayRate {
	rates := estimator.Estimate(events, req.Cutoff, s.opts.Estimator)
	if s.opts.HolidayAdjust {
		rates = holiday.Adjust(rates, s.opts.Calendar, req.Start(), req.End(), s.opts.HolidayMultiplier)
	}
	return rates
}

func (s *Service) lookup(ctx context.Context, key cache.Key) (*cache.Entry, bool) {
	entry, ok, err := s.access.LoadCache(ctx, key)
	if err != nil {
		s.log.Warnf("forecast cache read %s failed, recomputing: %v", key.Name(), err)
		s.recordCache(metrics.CacheError, 1)
		return nil, false
	}
	if !ok {
		s.recordCache(metrics.CacheMiss, 1)
		return nil, false
	}
	if !entry.Meta.Covers(key.SiteIDs) {
		// sites differing only by case share a fingerprint
		s.log.Debugw("cached forecast computed for other sites", map[string]any{
			"key":    key.Name(),
			"cached": entry.Meta.SiteIDs,
		})
		s.recordCache(metrics.CacheMiss, 1)
		return nil, false
	}
	s.recordCache(metrics.CacheHit, 1)
	return entry, true
}

func (s *Service) store(ctx context.Context, key cache.Key, points []model.ForecastPoint, siteCount int) {
	if err := s.access.SaveCache(ctx, key, points, siteCount); err != nil {
		s.log.Warnf("forecast cache write %s failed, result not cached: %v", key.Name(), err)
		s.recordCache(metrics.CacheError, 1)
		return
	}
	s.recordCache(metrics.CacheStore, 1)
}

func (s *Service) record(req model.ForecastRequest, res *Result, filtered bool, began time.Time) {
	now := s.now()
	ev := metrics.ForecastRunEvent{
		Cutoff:      res.Cutoff,
		HorizonDays: req.HorizonDays,
		Cached:      res.Cached,
		Filtered:    filtered,
		Sites:       res.SiteCount,
		Points:      len(res.Points),
		Duration:    now.Sub(began),
		Time:        now,
	}
	if err := s.sink.RecordForecastRun(ev); err != nil {
		s.log.Warnf("record forecast run: %v", err)
	}
	s.log.Infow("forecast run", map[string]any{
		"cutoff":  res.Cutoff.Format(model.DateLayout),
		"horizon": req.HorizonDays,
		"cached":  res.Cached,
		"sites":   res.SiteCount,
		"points":  len(res.Points),
	})
}

func (s *Service) recordCache(op string, n int) {
	rec, ok := s.sink.(metrics.CacheRecorder)
	if !ok {
		return
	}
	if err := rec.RecordCacheEvent(metrics.CacheEvent{Op: op, Count: n, Time: s.now()}); err != nil {
		s.log.Warnf("record cache event: %v", err)
	}
}
