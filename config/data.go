package config

import (
	"fmt"

	"github.com/kilianp07/fillcast/core/store"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DataConfig selects where service events and the site registry are read.
type DataConfig struct {
	// Backend is one of file, sqlite or postgres.
	Backend      string `json:"backend"`
	EventsPath   string `json:"events_path"`
	RegistryPath string `json:"registry_path"`
	// DSN is the database connection string for sql backends.
	DSN string `json:"dsn"`
}

func (c *DataConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Backend == BackendFile {
		if c.EventsPath == "" {
			c.EventsPath = "data/service_events.csv"
		}
		if c.RegistryPath == "" {
			c.RegistryPath = "data/site_registry.csv"
		}
	}
	if c.Backend == BackendSQLite && c.DSN == "" {
		c.DSN = "fillcast.db"
	}
}

func (c DataConfig) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.EventsPath == "" {
			return fmt.Errorf("events_path is required")
		}
	case BackendSQLite, BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for %s", c.Backend)
		}
	default:
		return fmt.Errorf("%w: %s", store.ErrUnsupportedBackend, c.Backend)
	}
	return nil
}
