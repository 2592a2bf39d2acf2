package forecast

import "net/http"

// Routes wires the API handlers.
type Routes struct {
	Forecasts      Runner
	Cache          CacheClearer
	Backtests      Backtester
	Metrics        http.Handler
	DefaultHorizon int
	// Token, when non-empty, is required as "Bearer <token>" on /api routes.
	Token string
}

// NewRouter returns a mux serving the forecast API and, when set, /metrics.
func NewRouter(r Routes) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/forecast", RequireToken(r.Token, NewHandler(r.Forecasts, r.DefaultHorizon)))
	if r.Cache != nil {
		mux.Handle("/api/forecast/cache", RequireToken(r.Token, NewCacheHandler(r.Cache)))
	}
	if r.Backtests != nil {
		mux.Handle("/api/backtest", RequireToken(r.Token, NewBacktestHandler(r.Backtests, r.DefaultHorizon)))
	}
	if r.Metrics != nil {
		mux.Handle("/metrics", r.Metrics)
	}
	return mux
}

// RequireToken rejects requests lacking the bearer token. An empty token
// disables the check.
func RequireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
