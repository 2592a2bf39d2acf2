package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/fillcast/core/estimator"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/core/simulator"
)

// DefaultMaxCutoffDate is the last day of the published service history.
const DefaultMaxCutoffDate = "2025-12-31"

// ForecastConfig tunes the estimator and simulator.
type ForecastConfig struct {
	// MaxCutoffDate is the latest accepted cutoff, as YYYY-MM-DD.
	MaxCutoffDate       string  `json:"max_cutoff_date"`
	WindowDays          int     `json:"window_days"`
	MinObs              int     `json:"min_obs"`
	Blended             bool    `json:"blended"`
	DefaultCapacityM3   float64 `json:"default_capacity_m3"`
	OverflowThreshold   float64 `json:"overflow_threshold"`
	ResetOnNearCapacity bool    `json:"reset_on_near_capacity"`
	DefaultHorizonDays  int     `json:"default_horizon_days"`
}

func (c *ForecastConfig) SetDefaults() {
	if c.MaxCutoffDate == "" {
		c.MaxCutoffDate = DefaultMaxCutoffDate
	}
	if c.WindowDays == 0 {
		c.WindowDays = estimator.DefaultWindowDays
	}
	if c.MinObs == 0 {
		c.MinObs = estimator.DefaultMinObs
	}
	if c.DefaultCapacityM3 == 0 {
		c.DefaultCapacityM3 = model.DefaultBinSizeLiters / 1000
	}
	if c.OverflowThreshold == 0 {
		c.OverflowThreshold = simulator.DefaultOverflowThreshold
	}
	if c.DefaultHorizonDays == 0 {
		c.DefaultHorizonDays = 14
	}
}

func (c ForecastConfig) Validate() error {
	if _, err := c.MaxCutoff(); err != nil {
		return err
	}
	if c.WindowDays < 1 {
		return fmt.Errorf("window_days must be positive")
	}
	if c.MinObs < 1 {
		return fmt.Errorf("min_obs must be positive")
	}
	if c.DefaultCapacityM3 <= 0 {
		return fmt.Errorf("default_capacity_m3 must be positive")
	}
	if c.OverflowThreshold <= 0 || c.OverflowThreshold > 1 {
		return fmt.Errorf("overflow_threshold must be in (0, 1]")
	}
	if c.DefaultHorizonDays < model.MinHorizonDays || c.DefaultHorizonDays > model.MaxHorizonDays {
		return fmt.Errorf("default_horizon_days must be in [%d, %d]", model.MinHorizonDays, model.MaxHorizonDays)
	}
	return nil
}

// MaxCutoff parses MaxCutoffDate.
func (c ForecastConfig) MaxCutoff() (time.Time, error) {
	d, err := model.ParseDay(c.MaxCutoffDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("max_cutoff_date: %w", err)
	}
	return d, nil
}

// Estimator returns the estimator settings.
func (c ForecastConfig) Estimator() estimator.Config {
	return estimator.Config{WindowDays: c.WindowDays, MinObs: c.MinObs, Blended: c.Blended}
}
