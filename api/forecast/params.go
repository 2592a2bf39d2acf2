package forecast

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/fillcast/core/model"
)

// ErrBadParam marks a query parameter that could not be parsed.
var ErrBadParam = errors.New("bad query parameter")

// Page bounds the points returned by a request.
type Page struct {
	Limit  int
	Offset int
}

// Apply slices points. A zero Limit returns everything after Offset.
func (p Page) Apply(points []model.ForecastPoint) []model.ForecastPoint {
	if p.Offset >= len(points) {
		return []model.ForecastPoint{}
	}
	points = points[p.Offset:]
	if p.Limit > 0 && p.Limit < len(points) {
		points = points[:p.Limit]
	}
	return points
}

// ParseRequest reads cutoff_date, horizon_days and the site filters from q.
// horizon_days falls back to defaultHorizon when absent.
func ParseRequest(q url.Values, defaultHorizon int) (model.ForecastRequest, error) {
	var req model.ForecastRequest
	raw := q.Get("cutoff_date")
	if raw == "" {
		return req, fmt.Errorf("%w: cutoff_date is required", ErrBadParam)
	}
	cutoff, err := model.ParseDay(raw)
	if err != nil {
		return req, fmt.Errorf("%w: cutoff_date: %v", ErrBadParam, err)
	}
	req.Cutoff = cutoff
	req.HorizonDays = defaultHorizon
	if h := q.Get("horizon_days"); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil {
			return req, fmt.Errorf("%w: horizon_days: %q is not an integer", ErrBadParam, h)
		}
		req.HorizonDays = n
	}
	req.SiteIDs = SiteIDs(q)
	req.District = strings.TrimSpace(q.Get("district"))
	req.Search = strings.TrimSpace(q.Get("search"))
	return req, nil
}

// SiteIDs merges repeated site_id values and the comma separated site_ids list.
func SiteIDs(q url.Values) []string {
	var ids []string
	seen := map[string]struct{}{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range q["site_id"] {
		add(id)
	}
	for _, list := range q["site_ids"] {
		for _, id := range strings.Split(list, ",") {
			add(id)
		}
	}
	return ids
}

// ParsePage reads limit and offset.
func ParsePage(q url.Values) (Page, error) {
	var p Page
	for _, f := range []struct {
		name string
		dst  *int
	}{{"limit", &p.Limit}, {"offset", &p.Offset}} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadParam, f.name)
		}
		*f.dst = n
	}
	return p, nil
}

// ParseCutoffs reads the comma separated cutoffs list.
func ParseCutoffs(raw string) ([]time.Time, error) {
	var out []time.Time
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		d, err := model.ParseDay(s)
		if err != nil {
			return nil, fmt.Errorf("%w: cutoffs: %v", ErrBadParam, err)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: cutoffs is required", ErrBadParam)
	}
	return out, nil
}

func withCutoff(q url.Values, cutoff time.Time) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = v
	}
	out.Set("cutoff_date", cutoff.Format(model.DateLayout))
	return out
}
