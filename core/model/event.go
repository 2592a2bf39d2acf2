package model

import (
	"sort"
	"time"
)

// ServiceEvent records a site being emptied on a date with the collected volume.
type ServiceEvent struct {
	SiteID   string    `json:"site_id"`
	Date     time.Time `json:"service_date"`
	VolumeM3 float64   `json:"volume_m3"`
}

// SortEvents orders events by site then date, in place.
func SortEvents(events []ServiceEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].SiteID != events[j].SiteID {
			return events[i].SiteID < events[j].SiteID
		}
		return events[i].Date.Before(events[j].Date)
	})
}

// GroupBySite splits events per site preserving their order.
func GroupBySite(events []ServiceEvent) map[string][]ServiceEvent {
	out := make(map[string][]ServiceEvent)
	for _, e := range events {
		out[e.SiteID] = append(out[e.SiteID], e)
	}
	return out
}

// SiteIDs returns the sorted distinct site ids of events.
func SiteIDs(events []ServiceEvent) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range events {
		if _, ok := seen[e.SiteID]; ok {
			continue
		}
		seen[e.SiteID] = struct{}{}
		ids = append(ids, e.SiteID)
	}
	sort.Strings(ids)
	return ids
}
