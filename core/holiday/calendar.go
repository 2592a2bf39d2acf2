// Package holiday adjusts weekday rates for public holidays falling inside a
// forecast window. Holiday dates come from a lookup table.
package holiday

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fillcast/core/model"
)

// DefaultRecurring lists the public holidays observed every year, as MM-DD.
var DefaultRecurring = []string{
	"01-01", "01-02", "01-03", "01-04", "01-05", "01-06", "01-07", "01-08",
	"02-23", "03-08", "05-01", "05-09", "06-12", "11-04",
}

// Calendar answers whether a day is a holiday.
type Calendar interface {
	IsHoliday(day time.Time) bool
}

// StaticCalendar is a fixed lookup table of explicit dates plus dates that
// recur every year.
type StaticCalendar struct {
	dates     map[time.Time]struct{}
	recurring map[string]struct{}
}

// NewStaticCalendar builds a calendar from explicit days and "MM-DD" entries.
func NewStaticCalendar(dates []time.Time, recurring []string) (*StaticCalendar, error) {
	c := &StaticCalendar{dates: map[time.Time]struct{}{}, recurring: map[string]struct{}{}}
	for _, d := range dates {
		c.dates[model.Day(d)] = struct{}{}
	}
	for _, r := range recurring {
		r = strings.TrimSpace(r)
		if _, err := time.Parse("01-02", r); err != nil {
			return nil, fmt.Errorf("recurring holiday %q: want MM-DD", r)
		}
		c.recurring[r] = struct{}{}
	}
	return c, nil
}

// IsHoliday reports whether day is listed.
func (c *StaticCalendar) IsHoliday(day time.Time) bool {
	if c == nil {
		return false
	}
	day = model.Day(day)
	if _, ok := c.dates[day]; ok {
		return true
	}
	_, ok := c.recurring[day.Format("01-02")]
	return ok
}

// File is the YAML layout of a holiday table.
type File struct {
	Dates     []string `yaml:"dates"`
	Recurring []string `yaml:"recurring"`
}

// Build converts the file into a calendar.
func (f File) Build() (*StaticCalendar, error) {
	dates := make([]time.Time, 0, len(f.Dates))
	for _, s := range f.Dates {
		d, err := model.ParseDay(s)
		if err != nil {
			return nil, fmt.Errorf("holiday date: %w", err)
		}
		dates = append(dates, d)
	}
	return NewStaticCalendar(dates, f.Recurring)
}

// LoadFile reads a YAML holiday table.
func LoadFile(path string) (*StaticCalendar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Build()
}
