// Package metrics defines the sinks recording forecast runs, cache activity
// and backtest accuracy. Sinks are created from configuration through a
// factory registry; several configured sinks are combined into a MultiSink.
// Concrete Prometheus and InfluxDB sinks live in infra/metrics.
package metrics
