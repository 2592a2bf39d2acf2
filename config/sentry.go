package config

import "github.com/kilianp07/fillcast/infra/monitoring"

// SentryConfig defines settings for Sentry error monitoring.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
}

// Options converts the section for the Sentry monitor.
func (c SentryConfig) Options() monitoring.SentryOptions {
	return monitoring.SentryOptions{
		DSN:              c.DSN,
		Environment:      c.Environment,
		Release:          c.Release,
		TracesSampleRate: c.TracesSampleRate,
	}
}
