// Package forecast exposes forecasts, cache maintenance and backtests over HTTP.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/fillcast/core/backtest"
	coreforecast "github.com/kilianp07/fillcast/core/forecast"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/pkg/export"
)

// Runner produces forecasts.
type Runner interface {
	Run(ctx context.Context, req model.ForecastRequest) (*coreforecast.Result, error)
}

// CacheClearer drops every cached forecast.
type CacheClearer interface {
	ClearCache(ctx context.Context) (int, error)
}

// Backtester evaluates forecasts against recorded history.
type Backtester interface {
	Run(ctx context.Context, cfg backtest.Config) (*backtest.Report, error)
}

// Response is the JSON body of GET /api/forecast.
type Response struct {
	coreforecast.Result
	// Total is the number of points before paging.
	Total  int `json:"total"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// NewHandler serves GET /api/forecast. Results are JSON unless format=csv.
func NewHandler(r Runner, defaultHorizon int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := req.URL.Query()
		freq, err := ParseRequest(q, defaultHorizon)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		page, err := ParsePage(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format := q.Get("format")
		if format != "" && format != "json" && format != "csv" {
			http.Error(w, "format must be json or csv", http.StatusBadRequest)
			return
		}
		res, err := r.Run(req.Context(), freq)
		if err != nil {
			writeError(w, err)
			return
		}
		points := page.Apply(res.Points)
		if format == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			if err := export.WriteCSV(w, points); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		out := Response{Result: *res, Total: len(res.Points), Limit: page.Limit, Offset: page.Offset}
		out.Points = points
		writeJSON(w, out)
	})
}

// NewCacheHandler serves DELETE /api/forecast/cache.
func NewCacheHandler(c CacheClearer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		n, err := c.ClearCache(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int{"removed": n})
	})
}

// NewBacktestHandler serves GET /api/backtest. Per-day rows are included
// only with rows=true.
func NewBacktestHandler(b Backtester, defaultHorizon int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := req.URL.Query()
		cutoffs, err := ParseCutoffs(q.Get("cutoffs"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		freq, err := ParseRequest(withCutoff(q, cutoffs[0]), defaultHorizon)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rep, err := b.Run(req.Context(), backtest.Config{
			Cutoffs:     cutoffs,
			HorizonDays: freq.HorizonDays,
			SiteIDs:     freq.SiteIDs,
			District:    freq.District,
			Search:      freq.Search,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if q.Get("rows") != "true" {
			rep.Rows = nil
		}
		writeJSON(w, rep)
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, model.ErrInvalidRequest) || errors.Is(err, backtest.ErrNoCutoffs) {
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
