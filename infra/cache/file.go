// Package cache provides forecast cache backends registered with the core
// cache factory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	corecache "github.com/kilianp07/fillcast/core/cache"
	"github.com/kilianp07/fillcast/core/model"
)

const (
	columnsSuffix = ".columns.json"
	metaSuffix    = ".meta.json"
)

// FileCache stores each entry as a columnar JSON table plus a metadata
// sidecar in a single directory.
type FileCache struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*keyLock
	now   func() time.Time
}

// keyLock serialises access to one key. It is dropped from the map once no
// caller holds or waits for it.
type keyLock struct {
	sync.Mutex
	refs int
}

// NewFileCache creates dir when missing.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("file cache: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file cache: %w", err)
	}
	return &FileCache{dir: dir, locks: make(map[string]*keyLock), now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// lock acquires the lock of name and returns its release function.
func (c *FileCache) lock(name string) func() {
	c.mu.Lock()
	l, ok := c.locks[name]
	if !ok {
		l = &keyLock{}
		c.locks[name] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		defer c.mu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(c.locks, name)
		}
	}
}

func (c *FileCache) paths(k corecache.Key) (data, meta string) {
	name := k.Name()
	return filepath.Join(c.dir, name+columnsSuffix), filepath.Join(c.dir, name+metaSuffix)
}

// Exists reports whether both files of the entry are present.
func (c *FileCache) Exists(_ context.Context, k corecache.Key) (bool, error) {
	data, meta := c.paths(k)
	for _, p := range []string{data, meta} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// Load reads an entry. A missing table is a miss; a missing sidecar is
// tolerated and the metadata rebuilt from the stored points.
func (c *FileCache) Load(_ context.Context, k corecache.Key) (*corecache.Entry, bool, error) {
	dataPath, metaPath := c.paths(k)
	defer c.lock(k.Name())()

	data, err := os.ReadFile(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("file cache read: %w", err)
	}
	points, err := corecache.DecodeColumns(data)
	if err != nil {
		return nil, false, err
	}
	var meta corecache.Meta
	raw, err := os.ReadFile(metaPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, false, fmt.Errorf("file cache meta: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		meta = corecache.RecoverMeta(k, points, int64(len(data)))
	default:
		return nil, false, fmt.Errorf("file cache meta: %w", err)
	}
	return &corecache.Entry{Meta: meta, Points: points}, true, nil
}

// Save writes the table and its sidecar atomically, one writer per key.
func (c *FileCache) Save(_ context.Context, k corecache.Key, points []model.ForecastPoint, siteCount int) error {
	data, err := corecache.EncodeColumns(points)
	if err != nil {
		return err
	}
	meta, err := json.MarshalIndent(corecache.NewMeta(k, siteCount, int64(len(data)), c.now()), "", "  ")
	if err != nil {
		return err
	}
	dataPath, metaPath := c.paths(k)
	defer c.lock(k.Name())()
	if err := writeAtomic(dataPath, data); err != nil {
		return err
	}
	return writeAtomic(metaPath, meta)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file cache write: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("file cache write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("file cache write: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("file cache write: %w", err)
	}
	return nil
}

// Clear removes every cache file and returns the number of entries removed.
func (c *FileCache) Clear(context.Context) (int, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("file cache clear: %w", err)
	}
	entries := 0
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, "forecast_") {
			continue
		}
		if !strings.HasSuffix(name, columnsSuffix) && !strings.HasSuffix(name, metaSuffix) && !strings.HasSuffix(name, ".tmp") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return entries, fmt.Errorf("file cache clear: %w", err)
		}
		if strings.HasSuffix(name, columnsSuffix) {
			entries++
		}
	}
	return entries, nil
}
