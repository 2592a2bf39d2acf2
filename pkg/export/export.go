// Package export renders forecasts and backtest results for external
// consumers.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/fillcast/core/backtest"
	"github.com/kilianp07/fillcast/core/model"
)

// WriteJSON writes the forecast points to w in JSON format.
func WriteJSON(w io.Writer, points []model.ForecastPoint) error {
	enc := json.NewEncoder(w)
	return enc.Encode(points)
}

// WriteCSV writes the forecast in narrow form. forecast_m3 duplicates
// pred_m3 for legacy consumers.
func WriteCSV(w io.Writer, points []model.ForecastPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"site_id", "date", "pred_m3", "forecast_m3"}); err != nil {
		return err
	}
	for _, p := range points {
		vol := strconv.FormatFloat(p.PredVolumeM3, 'f', -1, 64)
		rec := []string{p.SiteID, p.Date.Format(model.DateLayout), vol, vol}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBacktestCSV writes backtest rows; missing actuals and errors are
// empty cells.
func WriteBacktestCSV(w io.Writer, rows []backtest.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"cutoff", "site_id", "date", "pred_delta_m3", "actual_m3", "error_pct"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Cutoff.Format(model.DateLayout),
			r.SiteID,
			r.Date.Format(model.DateLayout),
			strconv.FormatFloat(r.PredDelta, 'f', -1, 64),
			optional(r.Actual),
			optional(r.ErrorPct),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
