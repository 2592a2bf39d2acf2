// Package sqlstore implements store.Source on database/sql. SQLite uses the
// pure Go modernc driver and PostgreSQL the pgx stdlib driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/core/store"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type dialect struct {
	driver string
	real   string
	// numbered placeholders ($1) instead of ?
	numbered bool
}

func (d dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS service_events (
            site_id TEXT NOT NULL,
            service_date TEXT NOT NULL,
            volume_m3 ` + d.real + `
        )`,
		`CREATE INDEX IF NOT EXISTS idx_service_events_site_date ON service_events (site_id, service_date)`,
		`CREATE TABLE IF NOT EXISTS site_registry (
            site_id TEXT PRIMARY KEY,
            district TEXT,
            address TEXT,
            bin_count INTEGER,
            bin_size_liters ` + d.real + `
        )`,
	}
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return dialect{driver: driver, real: "REAL"}, nil
	case DriverPostgres, "postgres":
		return dialect{driver: DriverPostgres, real: "DOUBLE PRECISION", numbered: true}, nil
	}
	return dialect{}, fmt.Errorf("%w: sql driver %q", store.ErrUnsupportedBackend, driver)
}

// Store reads events and registry entries from SQL tables.
type Store struct {
	db *sql.DB
	d  dialect
}

var _ store.Source = (*Store)(nil)

// Open connects with driver and ensures the schema exists.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}
	for _, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, fmt.Errorf("sqlstore schema: %w", err)
		}
	}
	return &Store{db: db, d: d}, nil
}

// LoadServiceEvents pushes the date and site filters into SQL.
func (s *Store) LoadServiceEvents(ctx context.Context, q store.EventQuery) ([]model.ServiceEvent, error) {
	var (
		args  []any
		where []string
	)
	arg := func(v any) string {
		args = append(args, v)
		return s.d.placeholder(len(args))
	}
	if q.Start != nil {
		where = append(where, "service_date >= "+arg(model.Day(*q.Start).Format(model.DateLayout)))
	}
	if q.End != nil {
		where = append(where, "service_date <= "+arg(model.Day(*q.End).Format(model.DateLayout)))
	}
	if len(q.SiteIDs) > 0 {
		ph := make([]string, len(q.SiteIDs))
		for i, id := range q.SiteIDs {
			ph[i] = arg(id)
		}
		where = append(where, "site_id IN ("+strings.Join(ph, ", ")+")")
	}
	query := `SELECT site_id, service_date, volume_m3 FROM service_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY site_id, service_date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var res []model.ServiceEvent
	for rows.Next() {
		var (
			id, day string
			vol     sql.NullFloat64
		)
		if err := rows.Scan(&id, &day, &vol); err != nil {
			return nil, err
		}
		d, err := model.ParseDay(day)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", id, err)
		}
		ev := model.ServiceEvent{SiteID: id, Date: d, VolumeM3: math.NaN()}
		if vol.Valid {
			ev.VolumeM3 = vol.Float64
		}
		res = append(res, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// LoadRegistry returns the requested entries, or all of them.
func (s *Store) LoadRegistry(ctx context.Context, siteIDs []string) (model.Registry, error) {
	query := `SELECT site_id, district, address, bin_count, bin_size_liters FROM site_registry`
	var args []any
	if len(siteIDs) > 0 {
		ph := make([]string, len(siteIDs))
		for i, id := range siteIDs {
			args = append(args, id)
			ph[i] = s.d.placeholder(i + 1)
		}
		query += " WHERE site_id IN (" + strings.Join(ph, ", ") + ")"
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer func() { _ = rows.Close() }()
	reg := make(model.Registry)
	for rows.Next() {
		var (
			e              model.RegistryEntry
			district, addr sql.NullString
			binCount       sql.NullInt64
			binSize        sql.NullFloat64
		)
		if err := rows.Scan(&e.SiteID, &district, &addr, &binCount, &binSize); err != nil {
			return nil, err
		}
		e.District, e.Address = district.String, addr.String
		e.BinCount, e.BinSizeLiters = int(binCount.Int64), binSize.Float64
		reg[e.SiteID] = e.Normalize()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reg, nil
}

// ImportStats reports what Import wrote.
type ImportStats struct {
	Sites    int
	Events   int
	Registry int
}

// Import replaces the events of every site present in events and upserts
// the registry entries, in a single transaction. Running it twice with the
// same input leaves the tables unchanged.
func (s *Store) Import(ctx context.Context, events []model.ServiceEvent, registry model.Registry) (ImportStats, error) {
	var stats ImportStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer func() { _ = tx.Rollback() }()

	p := s.d.placeholder
	sites := model.SiteIDs(events)
	for _, id := range sites {
		if _, err := tx.ExecContext(ctx, `DELETE FROM service_events WHERE site_id = `+p(1), id); err != nil {
			return stats, fmt.Errorf("import events: %w", err)
		}
	}
	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO service_events (site_id, service_date, volume_m3) VALUES (`+p(1)+`, `+p(2)+`, `+p(3)+`)`)
	if err != nil {
		return stats, err
	}
	defer func() { _ = insert.Close() }()
	for _, e := range events {
		var vol any
		if !math.IsNaN(e.VolumeM3) {
			vol = e.VolumeM3
		}
		if _, err := insert.ExecContext(ctx, e.SiteID, model.Day(e.Date).Format(model.DateLayout), vol); err != nil {
			return stats, fmt.Errorf("import events: %w", err)
		}
	}

	upsert := `INSERT INTO site_registry (site_id, district, address, bin_count, bin_size_liters)
        VALUES (` + p(1) + `, ` + p(2) + `, ` + p(3) + `, ` + p(4) + `, ` + p(5) + `)
        ON CONFLICT(site_id) DO UPDATE SET
            district = excluded.district,
            address = excluded.address,
            bin_count = excluded.bin_count,
            bin_size_liters = excluded.bin_size_liters`
	for _, id := range registry.SiteIDs() {
		e := registry[id]
		if _, err := tx.ExecContext(ctx, upsert, e.SiteID, e.District, e.Address, e.BinCount, e.BinSizeLiters); err != nil {
			return stats, fmt.Errorf("import registry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return stats, err
	}
	return ImportStats{Sites: len(sites), Events: len(events), Registry: len(registry)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
