package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// WAPE returns the weighted absolute percentage error Σ|p−a| / Σa × 100.
// ok is false when the actuals sum to zero or the slices differ in length.
func WAPE(pred, actual []float64) (wape float64, ok bool) {
	if len(pred) != len(actual) {
		return 0, false
	}
	var absErr, total float64
	for i := range pred {
		absErr += math.Abs(pred[i] - actual[i])
		total += actual[i]
	}
	if total <= 0 {
		return 0, false
	}
	return absErr / total * 100, true
}

// Metrics summarises accuracy over a set of rows.
type Metrics struct {
	Rows        int     `json:"rows"`
	Matched     int     `json:"matched"`
	CoveragePct float64 `json:"coverage_pct"`
	WAPE        float64 `json:"wape"`
	WAPEValid   bool    `json:"wape_valid"`
	MAE         float64 `json:"mae"`
	Bias        float64 `json:"bias"`
}

// Summarize computes Metrics over rows. Only rows with an actual take part
// in the error figures.
func Summarize(rows []Row) Metrics {
	m := Metrics{Rows: len(rows)}
	var pred, actual, absErr, signed []float64
	for _, r := range rows {
		if r.Actual == nil {
			continue
		}
		pred = append(pred, r.PredDelta)
		actual = append(actual, *r.Actual)
		absErr = append(absErr, math.Abs(r.PredDelta-*r.Actual))
		signed = append(signed, r.PredDelta-*r.Actual)
	}
	m.Matched = len(actual)
	if m.Rows > 0 {
		m.CoveragePct = float64(m.Matched) / float64(m.Rows) * 100
	}
	if m.Matched == 0 {
		return m
	}
	m.WAPE, m.WAPEValid = WAPE(pred, actual)
	m.MAE = stat.Mean(absErr, nil)
	m.Bias = stat.Mean(signed, nil)
	return m
}
