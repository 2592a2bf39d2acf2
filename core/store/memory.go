package store

import (
	"context"
	"sync"

	"github.com/kilianp07/fillcast/core/model"
)

// MemoryStore keeps events and registry entries in memory for tests or
// embedding.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []model.ServiceEvent
	registry model.Registry
}

// NewMemoryStore returns a store holding copies of the given data.
func NewMemoryStore(events []model.ServiceEvent, registry []model.RegistryEntry) *MemoryStore {
	s := &MemoryStore{registry: make(model.Registry)}
	for _, e := range events {
		s.AddEvent(e)
	}
	for _, r := range registry {
		s.AddRegistryEntry(r)
	}
	return s
}

// AddEvent appends an event, normalising its date to a UTC day.
func (s *MemoryStore) AddEvent(e model.ServiceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Date = model.Day(e.Date)
	s.events = append(s.events, e)
}

// AddRegistryEntry inserts or replaces site metadata.
func (s *MemoryStore) AddRegistryEntry(r model.RegistryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[r.SiteID] = r.Normalize()
}

// LoadServiceEvents returns matching events sorted by site and date.
func (s *MemoryStore) LoadServiceEvents(ctx context.Context, q EventQuery) ([]model.ServiceEvent, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	sites := SiteSet(q.SiteIDs)
	var res []model.ServiceEvent
	for _, e := range s.events {
		if q.Match(e, sites) {
			res = append(res, e)
		}
	}
	model.SortEvents(res)
	return res, nil
}

// LoadRegistry returns a copy of the requested entries.
func (s *MemoryStore) LoadRegistry(ctx context.Context, siteIDs []string) (model.Registry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(model.Registry, len(s.registry))
	for id, e := range FilterRegistry(s.registry, siteIDs) {
		out[id] = e
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
