package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fillcast/core/metrics"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/infra/logger"
)

// InfluxSink writes forecast activity to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// RecordForecastRun writes a forecast_run point.
func (s *InfluxSink) RecordForecastRun(ev coremetrics.ForecastRunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("forecast_run").
		AddTag("cutoff", ev.Cutoff.Format(model.DateLayout)).
		AddTag("cached", strconv.FormatBool(ev.Cached)).
		AddTag("filtered", strconv.FormatBool(ev.Filtered)).
		AddTag("component", "forecast").
		AddField("horizon_days", ev.HorizonDays).
		AddField("sites", ev.Sites).
		AddField("points", ev.Points).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCacheEvent writes a forecast_cache point.
func (s *InfluxSink) RecordCacheEvent(ev coremetrics.CacheEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("forecast_cache").
		AddTag("op", ev.Op).
		AddTag("component", "forecast").
		AddField("count", ev.Count).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBacktest writes one backtest_accuracy point per cutoff plus the
// overall summary tagged cutoff=overall.
func (s *InfluxSink) RecordBacktest(evs []coremetrics.BacktestEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range evs {
		cutoff := OverallScope
		if !ev.Cutoff.IsZero() {
			cutoff = ev.Cutoff.Format(model.DateLayout)
		}
		p := write.NewPointWithMeasurement("backtest_accuracy").
			AddTag("run_id", ev.RunID).
			AddTag("cutoff", cutoff).
			AddTag("component", "backtest").
			AddField("horizon_days", ev.HorizonDays).
			AddField("coverage_pct", round3(ev.CoveragePct)).
			AddField("mae", round3(ev.MAE)).
			AddField("rows", ev.Rows).
			AddField("matched", ev.Matched)
		if ev.WAPEValid {
			p = p.AddField("wape", round3(ev.WAPE))
		}
		p = p.SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
