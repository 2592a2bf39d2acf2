package config

import (
	"fmt"

	"github.com/kilianp07/fillcast/core/holiday"
)

// HolidayConfig enables the holiday rate adjustment.
type HolidayConfig struct {
	Enabled    bool    `json:"enabled"`
	Multiplier float64 `json:"multiplier"`
	// Dates are explicit YYYY-MM-DD holidays.
	Dates []string `json:"dates"`
	// Recurring are MM-DD holidays observed every year.
	Recurring []string `json:"recurring"`
	// File is a YAML holiday table; when set it replaces Dates and Recurring.
	File string `json:"file"`
}

func (c *HolidayConfig) SetDefaults() {
	if c.Multiplier == 0 {
		c.Multiplier = holiday.DefaultMultiplier
	}
	if c.File == "" && len(c.Dates) == 0 && len(c.Recurring) == 0 {
		c.Recurring = append([]string(nil), holiday.DefaultRecurring...)
	}
}

func (c HolidayConfig) Validate() error {
	if c.Multiplier <= 0 {
		return fmt.Errorf("multiplier must be positive")
	}
	if c.File != "" {
		return nil
	}
	_, err := holiday.File{Dates: c.Dates, Recurring: c.Recurring}.Build()
	return err
}

// Calendar builds the configured holiday table.
func (c HolidayConfig) Calendar() (holiday.Calendar, error) {
	if c.File != "" {
		return holiday.LoadFile(c.File)
	}
	return holiday.File{Dates: c.Dates, Recurring: c.Recurring}.Build()
}
