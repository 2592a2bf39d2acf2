// Package app wires configuration into the forecasting services.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/kilianp07/fillcast/api/forecast"
	"github.com/kilianp07/fillcast/config"
	"github.com/kilianp07/fillcast/core/alert"
	"github.com/kilianp07/fillcast/core/backtest"
	"github.com/kilianp07/fillcast/core/cache"
	"github.com/kilianp07/fillcast/core/forecast"
	"github.com/kilianp07/fillcast/core/holiday"
	coremetrics "github.com/kilianp07/fillcast/core/metrics"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/core/store"
	_ "github.com/kilianp07/fillcast/infra/cache"
	"github.com/kilianp07/fillcast/infra/filestore"
	"github.com/kilianp07/fillcast/infra/logger"
	_ "github.com/kilianp07/fillcast/infra/metrics"
	"github.com/kilianp07/fillcast/infra/mqtt"
	"github.com/kilianp07/fillcast/infra/sqlstore"
)

// Service holds the wired forecasting components.
type Service struct {
	Forecast *forecast.Service
	Backtest *backtest.Engine
	// Data is the cache-backed access layer over the configured source.
	Data *store.Layer

	cfg      *config.Config
	cache    cache.Cache
	sink     coremetrics.MetricsSink
	notifier alert.Notifier
	log      logger.Logger
}

// New builds a Service from the configuration. The notifier is connected
// lazily on the first Notify call.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	src, err := OpenSource(ctx, cfg.Data, logger.New("store"))
	if err != nil {
		return nil, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	c := cache.New(cfg.Cache, logger.New("cache"))
	opts, err := Options(cfg)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	layer := store.NewLayer(src, c)
	svc := forecast.NewService(layer, opts, logger.New("forecast"), sink)
	return &Service{
		Forecast: svc,
		Backtest: &backtest.Engine{Forecaster: svc, Source: layer, Sink: sink, Log: logger.New("backtest")},
		Data:     layer,
		cfg:      cfg,
		cache:    c,
		sink:     sink,
		log:      log,
	}, nil
}

// OpenSource opens the configured event and registry source.
func OpenSource(ctx context.Context, cfg config.DataConfig, log logger.Logger) (store.Source, error) {
	switch cfg.Backend {
	case config.BackendFile:
		fstore, err := filestore.New(filestore.Config{EventsPath: cfg.EventsPath, RegistryPath: cfg.RegistryPath}, log)
		if err != nil {
			return nil, err
		}
		return fstore, nil
	case config.BackendSQLite, config.BackendPostgres:
		db, err := OpenSQL(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("%w: %s", store.ErrUnsupportedBackend, cfg.Backend)
}

// OpenSQL opens the configured SQL database.
func OpenSQL(ctx context.Context, cfg config.DataConfig) (*sqlstore.Store, error) {
	driver := sqlstore.DriverSQLite
	switch cfg.Backend {
	case config.BackendSQLite:
	case config.BackendPostgres:
		driver = sqlstore.DriverPostgres
	default:
		return nil, fmt.Errorf("%w: %s is not a sql backend", store.ErrUnsupportedBackend, cfg.Backend)
	}
	db, err := sqlstore.Open(ctx, driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Backend, err)
	}
	return db, nil
}

// Options maps the forecast and holiday sections onto forecast.Options.
func Options(cfg *config.Config) (forecast.Options, error) {
	maxCutoff, err := cfg.Forecast.MaxCutoff()
	if err != nil {
		return forecast.Options{}, err
	}
	opts := forecast.Options{
		MaxCutoff:           maxCutoff,
		Estimator:           cfg.Forecast.Estimator(),
		DefaultCapacityM3:   cfg.Forecast.DefaultCapacityM3,
		OverflowThreshold:   cfg.Forecast.OverflowThreshold,
		ResetOnNearCapacity: cfg.Forecast.ResetOnNearCapacity,
	}
	if cfg.Holidays.Enabled {
		var cal holiday.Calendar
		cal, err = cfg.Holidays.Calendar()
		if err != nil {
			return forecast.Options{}, fmt.Errorf("holidays: %w", err)
		}
		opts.HolidayAdjust = true
		opts.HolidayMultiplier = cfg.Holidays.Multiplier
		opts.Calendar = cal
	}
	return opts, nil
}

// SetNotifier overrides the alert notifier.
func (s *Service) SetNotifier(n alert.Notifier) { s.notifier = n }

// Notify publishes overflow alerts for points. It is a no-op unless alerts
// are enabled.
func (s *Service) Notify(ctx context.Context, points []model.ForecastPoint) ([]alert.Alert, int, error) {
	if !s.cfg.Alerts.Enabled && s.notifier == nil {
		return nil, 0, nil
	}
	alerts := alert.Detect(points, s.cfg.Alerts.Threshold)
	if len(alerts) == 0 {
		return nil, 0, nil
	}
	if s.notifier == nil {
		pub, err := mqtt.NewPublisher(s.cfg.Alerts.MQTT)
		if err != nil {
			return alerts, 0, fmt.Errorf("mqtt publisher: %w", err)
		}
		s.notifier = pub
	}
	n, err := s.notifier.Notify(ctx, alerts)
	return alerts, n, err
}

// Handler returns the HTTP API, including /metrics.
func (s *Service) Handler() http.Handler {
	return api.NewRouter(api.Routes{
		Forecasts:      s.Forecast,
		Cache:          s.Forecast,
		Backtests:      s.Backtest,
		Metrics:        promhttp.Handler(),
		DefaultHorizon: s.cfg.Forecast.DefaultHorizonDays,
		Token:          s.cfg.Server.Token,
	})
}

// Serve runs the HTTP API until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.Server.Address)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the source, cache, metrics sink and notifier.
func (s *Service) Close() error {
	var errs []error
	errs = append(errs, s.Data.Close())
	for _, v := range []any{s.cache, s.sink} {
		if c, ok := v.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	if pub, ok := s.notifier.(*mqtt.Publisher); ok {
		pub.Disconnect()
	}
	return errors.Join(errs...)
}
