// Package factory provides a small generic registry used to build pluggable
// backends (forecast caches, metrics sinks) from configuration. A backend is
// described by a type string and a map of raw settings; its factory decodes
// the settings into a typed struct and returns the implementation.
//
//	reg := factory.NewRegistry[cache.Cache]()
//	reg.Register("file", func(conf map[string]any) (cache.Cache, error) {
//	    var c struct{ Dir string `json:"dir"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewFileCache(c.Dir)
//	})
//	c, err := reg.Create(factory.ModuleConfig{Type: "file", Conf: map[string]any{"dir": ".cache"}})
package factory
