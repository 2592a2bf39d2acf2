package model

import "sort"

const (
	// DefaultBinSizeLiters is the container size assumed when unknown.
	DefaultBinSizeLiters = 1100.0
	// UnknownDistrict labels sites without registry metadata.
	UnknownDistrict = "Unknown"
)

// RegistryEntry holds static metadata for a site.
type RegistryEntry struct {
	SiteID        string  `json:"site_id"`
	District      string  `json:"district"`
	Address       string  `json:"address,omitempty"`
	BinCount      int     `json:"bin_count"`
	BinSizeLiters float64 `json:"bin_size_liters"`
}

// Normalize applies defaults for missing bin information.
func (r RegistryEntry) Normalize() RegistryEntry {
	if r.BinCount < 1 {
		r.BinCount = 1
	}
	if r.BinSizeLiters <= 0 {
		r.BinSizeLiters = DefaultBinSizeLiters
	}
	if r.District == "" {
		r.District = UnknownDistrict
	}
	return r
}

// CapacityM3 returns the total container volume in cubic meters.
func (r RegistryEntry) CapacityM3() float64 {
	return float64(r.BinCount) * r.BinSizeLiters / 1000
}

// PlaceholderEntry derives registry metadata for a site that has none.
func PlaceholderEntry(siteID string) RegistryEntry {
	return RegistryEntry{
		SiteID:        siteID,
		District:      UnknownDistrict,
		BinCount:      1,
		BinSizeLiters: DefaultBinSizeLiters,
	}
}

// Registry maps site ids to their metadata.
type Registry map[string]RegistryEntry

// SiteIDs returns the registry keys in sorted order.
func (r Registry) SiteIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EnsureSites adds a placeholder entry for every id not yet present.
func (r Registry) EnsureSites(ids []string) {
	for _, id := range ids {
		if _, ok := r[id]; !ok {
			r[id] = PlaceholderEntry(id)
		}
	}
}
