package metrics

import (
	"errors"
	"io"
)

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordForecastRun forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordForecastRun(ev ForecastRunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordForecastRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordCacheEvent forwards to sinks implementing CacheRecorder.
func (m *MultiSink) RecordCacheEvent(ev CacheEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CacheRecorder); ok {
			if err := rec.RecordCacheEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBacktest forwards to sinks implementing BacktestRecorder.
func (m *MultiSink) RecordBacktest(evs []BacktestEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BacktestRecorder); ok {
			if err := rec.RecordBacktest(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
