package cache

import (
	"github.com/kilianp07/fillcast/core/factory"
	"github.com/kilianp07/fillcast/core/logger"
)

var backendRegistry = factory.NewRegistry[Cache]()

// RegisterBackend adds a cache backend factory identified by name.
func RegisterBackend(name string, f factory.Factory[Cache]) error {
	return backendRegistry.Register(name, f)
}

// New creates the configured cache. A backend that cannot be initialised
// degrades to NopCache with a warning instead of failing the caller.
func New(cfg factory.ModuleConfig, log logger.Logger) Cache {
	if cfg.Type == "" || cfg.Type == "nop" {
		return NopCache{}
	}
	c, err := backendRegistry.Create(cfg)
	if err != nil {
		log.Warnf("forecast cache %q unavailable, caching disabled: %v", cfg.Type, err)
		return NopCache{}
	}
	return c
}
