// Package store defines read access to service history and site metadata.
// Backends are interchangeable behind Source and must share its filtering
// semantics: inclusive date bounds and set-membership site filters.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fillcast/core/model"
)

// ErrUnsupportedBackend is returned for unknown store backends.
var ErrUnsupportedBackend = errors.New("unsupported store backend")

// EventQuery restricts loaded events. Nil bounds are open.
type EventQuery struct {
	Start   *time.Time
	End     *time.Time
	SiteIDs []string
}

// Between returns a query for the inclusive date range.
func Between(start, end time.Time) EventQuery {
	s, e := model.Day(start), model.Day(end)
	return EventQuery{Start: &s, End: &e}
}

// Until returns a query for every event up to and including end.
func Until(end time.Time) EventQuery {
	e := model.Day(end)
	return EventQuery{End: &e}
}

// WithSites returns a copy of q restricted to ids.
func (q EventQuery) WithSites(ids []string) EventQuery {
	q.SiteIDs = ids
	return q
}

// Match reports whether e satisfies the query.
func (q EventQuery) Match(e model.ServiceEvent, sites map[string]struct{}) bool {
	d := model.Day(e.Date)
	if q.Start != nil && d.Before(model.Day(*q.Start)) {
		return false
	}
	if q.End != nil && d.After(model.Day(*q.End)) {
		return false
	}
	if sites != nil {
		if _, ok := sites[e.SiteID]; !ok {
			return false
		}
	}
	return true
}

// SiteSet converts ids into a membership set, nil when ids is empty.
func SiteSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Source loads service events and registry metadata. It never mutates data.
type Source interface {
	// LoadServiceEvents returns matching events sorted by site then date.
	LoadServiceEvents(ctx context.Context, q EventQuery) ([]model.ServiceEvent, error)
	// LoadRegistry returns the entries for siteIDs, or every entry when empty.
	// Sites without metadata are simply absent.
	LoadRegistry(ctx context.Context, siteIDs []string) (model.Registry, error)
	Close() error
}

// FilterRegistry keeps the entries listed in ids; empty ids keep everything.
func FilterRegistry(r model.Registry, ids []string) model.Registry {
	if len(ids) == 0 {
		return r
	}
	out := make(model.Registry, len(ids))
	for _, id := range ids {
		if e, ok := r[id]; ok {
			out[id] = e
		}
	}
	return out
}
