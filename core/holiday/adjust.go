package holiday

import (
	"time"

	"github.com/kilianp07/fillcast/core/model"
)

// DefaultMultiplier scales rates of weekdays hosting a holiday.
const DefaultMultiplier = 1.15

// HolidayWeekdays returns the weekdays on which a holiday falls in
// [start, end].
func HolidayWeekdays(cal Calendar, start, end time.Time) map[model.Weekday]bool {
	out := map[model.Weekday]bool{}
	if cal == nil {
		return out
	}
	for d := model.Day(start); !d.After(model.Day(end)); d = model.AddDays(d, 1) {
		if cal.IsHoliday(d) {
			out[model.WeekdayOf(d)] = true
		}
	}
	return out
}

// Adjust returns a copy of rates where every row whose weekday hosts a
// holiday in [start, end] is multiplied by multiplier. A non-positive
// multiplier uses DefaultMultiplier. The input is never modified.
func Adjust(rates []model.WeekdayRate, cal Calendar, start, end time.Time, multiplier float64) []model.WeekdayRate {
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	out := append([]model.WeekdayRate(nil), rates...)
	days := HolidayWeekdays(cal, start, end)
	if len(days) == 0 {
		return out
	}
	for i := range out {
		if days[out[i].Weekday] {
			out[i].RateM3PerDay *= multiplier
		}
	}
	return out
}
