package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fillcast/core/factory"
	"github.com/kilianp07/fillcast/core/metrics"
)

// EnvPrefix prefixes environment overrides. FILLCAST_FORECAST__WINDOW_DAYS
// maps to forecast.window_days.
const EnvPrefix = "FILLCAST_"

type Config struct {
	Data     DataConfig           `json:"data"`
	Forecast ForecastConfig       `json:"forecast"`
	Holidays HolidayConfig        `json:"holidays"`
	Cache    factory.ModuleConfig `json:"cache"`
	Metrics  metrics.Config       `json:"metrics"`
	Alerts   AlertConfig          `json:"alerts"`
	Server   ServerConfig         `json:"server"`
	Logging  LoggingConfig        `json:"logging"`
	Sentry   SentryConfig         `json:"sentry"`
}

// LoadDotEnv loads variables from a .env file when it exists.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration file at path, applies environment overrides
// and defaults, then validates every section. An empty path uses defaults and
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Data.SetDefaults()
	c.Forecast.SetDefaults()
	c.Holidays.SetDefaults()
	if c.Cache.Type == "" {
		c.Cache.Type = "file"
	}
	if len(c.Metrics.Sinks) == 0 {
		c.Metrics.Sinks = []factory.ModuleConfig{{Type: "nop"}}
	}
	c.Alerts.SetDefaults()
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and prefixes errors with the section name.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"data", c.Data.Validate},
		{"forecast", c.Forecast.Validate},
		{"holidays", c.Holidays.Validate},
		{"alerts", c.Alerts.Validate},
		{"server", c.Server.Validate},
		{"logging", c.Logging.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}
