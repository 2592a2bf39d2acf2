package forecast

import (
	"strings"

	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/core/store"
)

// filterSites keeps points whose site is in ids; empty ids keep everything.
func filterSites(points []model.ForecastPoint, ids []string) []model.ForecastPoint {
	set := store.SiteSet(ids)
	if set == nil {
		return points
	}
	out := make([]model.ForecastPoint, 0, len(points))
	for _, p := range points {
		if _, ok := set[p.SiteID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// matchRegistry reports whether a site passes the district prefix and
// free-text search filters. Both comparisons ignore case.
func matchRegistry(e model.RegistryEntry, district, search string) bool {
	if district = strings.ToLower(strings.TrimSpace(district)); district != "" {
		if !strings.HasPrefix(strings.ToLower(e.District), district) {
			return false
		}
	}
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		if !strings.Contains(strings.ToLower(e.SiteID), search) &&
			!strings.Contains(strings.ToLower(e.Address), search) {
			return false
		}
	}
	return true
}

// applyFilters restricts points by site ids, district and search.
func applyFilters(points []model.ForecastPoint, reg model.Registry, req model.ForecastRequest) []model.ForecastPoint {
	points = filterSites(points, req.SiteIDs)
	if strings.TrimSpace(req.District) == "" && strings.TrimSpace(req.Search) == "" {
		return points
	}
	keep := make(map[string]bool)
	out := make([]model.ForecastPoint, 0, len(points))
	for _, p := range points {
		ok, seen := keep[p.SiteID]
		if !seen {
			entry, found := reg[p.SiteID]
			if !found {
				entry = model.PlaceholderEntry(p.SiteID)
			}
			ok = matchRegistry(entry, req.District, req.Search)
			keep[p.SiteID] = ok
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}
