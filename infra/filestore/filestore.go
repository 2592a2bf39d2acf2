// Package filestore reads service history and site metadata from flat CSV
// files.
package filestore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/fillcast/core/logger"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/core/store"
)

// Config locates the data files.
type Config struct {
	EventsPath   string `json:"events_path"`
	RegistryPath string `json:"registry_path"`
}

// Store implements store.Source over events.csv and registry.csv. Files are
// read on every call so edits are picked up without a restart.
type Store struct {
	cfg Config
	log logger.Logger
}

var _ store.Source = (*Store)(nil)

// New returns a store for the given files.
func New(cfg Config, log logger.Logger) (*Store, error) {
	if cfg.EventsPath == "" {
		return nil, errors.New("filestore: events_path is required")
	}
	return &Store{cfg: cfg, log: log}, nil
}

// LoadServiceEvents parses events.csv. The file must exist.
func (s *Store) LoadServiceEvents(ctx context.Context, q store.EventQuery) ([]model.ServiceEvent, error) {
	f, err := os.Open(s.cfg.EventsPath)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer func() { _ = f.Close() }()
	events, err := ReadEvents(ctx, f, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.EventsPath, err)
	}
	return events, nil
}

// LoadRegistry parses registry.csv. A missing file yields an empty registry.
func (s *Store) LoadRegistry(_ context.Context, siteIDs []string) (model.Registry, error) {
	if s.cfg.RegistryPath == "" {
		return model.Registry{}, nil
	}
	f, err := os.Open(s.cfg.RegistryPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Warnf("registry file %s not found, using placeholders", s.cfg.RegistryPath)
			return model.Registry{}, nil
		}
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer func() { _ = f.Close() }()
	reg, err := ReadRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.cfg.RegistryPath, err)
	}
	return store.FilterRegistry(reg, siteIDs), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	rec, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header")
		}
		return nil, err
	}
	h := make(header, len(rec))
	for i, name := range rec {
		h[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return h, nil
}

func (h header) get(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ReadEvents parses site_id,date,volume_m3 rows matching q. An empty volume
// is kept as NaN so the interval it closes is still known.
func ReadEvents(ctx context.Context, r io.Reader, q store.EventQuery) ([]model.ServiceEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr, "site_id", "date", "volume_m3")
	if err != nil {
		return nil, err
	}
	sites := store.SiteSet(q.SiteIDs)
	var events []model.ServiceEvent
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		id := h.get(rec, "site_id")
		if id == "" {
			continue
		}
		d, err := model.ParseDay(h.get(rec, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vol := math.NaN()
		if raw := h.get(rec, "volume_m3"); raw != "" {
			vol, err = strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid volume %q", line, raw)
			}
		}
		ev := model.ServiceEvent{SiteID: id, Date: d, VolumeM3: vol}
		if q.Match(ev, sites) {
			events = append(events, ev)
		}
	}
	model.SortEvents(events)
	return events, nil
}

// ReadRegistry parses site_id,district,address,bin_count,bin_size_liters
// rows. Only site_id is mandatory; later duplicates win.
func ReadRegistry(r io.Reader) (model.Registry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr, "site_id")
	if err != nil {
		return nil, err
	}
	reg := make(model.Registry)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		e := model.RegistryEntry{
			SiteID:   h.get(rec, "site_id"),
			District: h.get(rec, "district"),
			Address:  h.get(rec, "address"),
		}
		if e.SiteID == "" {
			continue
		}
		if raw := h.get(rec, "bin_count"); raw != "" {
			if e.BinCount, err = strconv.Atoi(raw); err != nil {
				return nil, fmt.Errorf("line %d: invalid bin_count %q", line, raw)
			}
		}
		if raw := h.get(rec, "bin_size_liters"); raw != "" {
			if e.BinSizeLiters, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid bin_size_liters %q", line, raw)
			}
		}
		reg[e.SiteID] = e.Normalize()
	}
	return reg, nil
}

// WriteEvents writes events in the layout ReadEvents expects.
func WriteEvents(w io.Writer, events []model.ServiceEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"site_id", "date", "volume_m3"}); err != nil {
		return err
	}
	for _, e := range events {
		vol := ""
		if !math.IsNaN(e.VolumeM3) {
			vol = strconv.FormatFloat(e.VolumeM3, 'f', -1, 64)
		}
		if err := cw.Write([]string{e.SiteID, e.Date.Format(model.DateLayout), vol}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
