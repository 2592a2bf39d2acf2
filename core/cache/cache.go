// Package cache defines the content-addressed forecast cache. Entries are keyed
// by cutoff, output window and a fingerprint of the filters applied, so a new
// cutoff or horizon is a miss by construction and nothing ever expires.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/fillcast/core/model"
)

// Filters describes the site/district/search restriction of a request.
type Filters struct {
	SiteIDs  []string
	District string
	Search   string
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return len(f.SiteIDs) == 0 && strings.TrimSpace(f.District) == "" && strings.TrimSpace(f.Search) == ""
}

type canonicalFilters struct {
	District string   `json:"district"`
	Search   string   `json:"search"`
	SiteIDs  []string `json:"site_ids"`
}

// Fingerprint returns a stable hash of the filters, or "" when unfiltered.
// Site ids are de-duplicated, sorted and lower-cased before hashing.
func Fingerprint(f Filters) string {
	if f.Empty() {
		return ""
	}
	seen := make(map[string]struct{}, len(f.SiteIDs))
	ids := make([]string, 0, len(f.SiteIDs))
	for _, id := range f.SiteIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	b, _ := json.Marshal(canonicalFilters{
		District: strings.ToLower(strings.TrimSpace(f.District)),
		Search:   strings.ToLower(strings.TrimSpace(f.Search)),
		SiteIDs:  ids,
	})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// Key identifies a cached forecast. SiteIDs keeps the exact requested ids,
// which the case-insensitive fingerprint cannot tell apart.
type Key struct {
	Cutoff      time.Time
	Start       time.Time
	End         time.Time
	Fingerprint string
	SiteIDs     []string
}

// NewKey builds a key for the given window and filters.
func NewKey(cutoff, start, end time.Time, f Filters) Key {
	return Key{
		Cutoff:      model.Day(cutoff),
		Start:       model.Day(start),
		End:         model.Day(end),
		Fingerprint: Fingerprint(f),
		SiteIDs:     exactSites(f.SiteIDs),
	}
}

func exactSites(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Name is the storage-safe identifier of the key.
func (k Key) Name() string {
	name := fmt.Sprintf("forecast_%s_%s_%s",
		k.Cutoff.Format(model.DateLayout), k.Start.Format(model.DateLayout), k.End.Format(model.DateLayout))
	if k.Fingerprint != "" {
		name += "_" + k.Fingerprint
	}
	return name
}

// Meta is the sidecar record stored next to each cached table.
type Meta struct {
	Cutoff        string    `json:"cutoff"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	SiteIDs       []string  `json:"site_ids,omitempty"`
	SiteCount     int       `json:"site_count"`
	GeneratedAt   time.Time `json:"generated_at"`
	FileSizeBytes int64     `json:"file_size_bytes"`
}

// NewMeta fills the metadata of a freshly encoded table.
func NewMeta(k Key, siteCount int, size int64, now time.Time) Meta {
	return Meta{
		Cutoff:        k.Cutoff.Format(model.DateLayout),
		Start:         k.Start.Format(model.DateLayout),
		End:           k.End.Format(model.DateLayout),
		Fingerprint:   k.Fingerprint,
		SiteIDs:       k.SiteIDs,
		SiteCount:     siteCount,
		GeneratedAt:   now.UTC(),
		FileSizeBytes: size,
	}
}

// RecoverMeta rebuilds the metadata of a table whose sidecar is missing. The
// site set is taken from the stored points, never from the requesting key.
func RecoverMeta(k Key, points []model.ForecastPoint, size int64) Meta {
	meta := NewMeta(k, model.CountSites(points), size, time.Time{})
	meta.SiteIDs = nil
	if len(k.SiteIDs) > 0 {
		ids := make([]string, len(points))
		for i, p := range points {
			ids[i] = p.SiteID
		}
		meta.SiteIDs = exactSites(ids)
	}
	return meta
}

// Covers reports whether the entry was computed for every site in ids.
// Site ids are compared case-sensitively.
func (m Meta) Covers(ids []string) bool {
	have := make(map[string]struct{}, len(m.SiteIDs))
	for _, id := range m.SiteIDs {
		have[id] = struct{}{}
	}
	for _, id := range exactSites(ids) {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// Entry is a cached forecast table with its metadata.
type Entry struct {
	Meta   Meta
	Points []model.ForecastPoint
}

// Cache persists simulator output. Implementations must be safe for
// concurrent use and guarantee a single writer per key.
type Cache interface {
	Exists(ctx context.Context, k Key) (bool, error)
	// Load returns ok=false on a miss.
	Load(ctx context.Context, k Key) (entry *Entry, ok bool, err error)
	Save(ctx context.Context, k Key, points []model.ForecastPoint, siteCount int) error
	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Exists(context.Context, Key) (bool, error) { return false, nil }
func (NopCache) Load(context.Context, Key) (*Entry, bool, error) {
	return nil, false, nil
}
func (NopCache) Save(context.Context, Key, []model.ForecastPoint, int) error { return nil }
func (NopCache) Clear(context.Context) (int, error)                          { return 0, nil }
