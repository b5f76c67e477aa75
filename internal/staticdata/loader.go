// Package staticdata loads the pre-built cluster and garden GeoJSON files.
package staticdata

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/botanitours-map/internal/cache/keys"
	"github.com/mohammed-shakir/botanitours-map/internal/core/observability"
)

var ErrNotFound = errors.New("static file not found")

// Loader decodes files from fsys once and keeps the most recent ones in memory.
type Loader struct {
	fsys  fs.FS
	cache *lru.Cache[string, *geojson.FeatureCollection]
}

func New(fsys fs.FS, cacheSize int) (*Loader, error) {
	if fsys == nil {
		return nil, errors.New("staticdata: nil filesystem")
	}
	if cacheSize <= 0 {
		cacheSize = 32
	}
	c, err := lru.New[string, *geojson.FeatureCollection](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("static cache: %w", err)
	}
	return &Loader{fsys: fsys, cache: c}, nil
}

// Load returns the decoded collection. Callers must not modify it.
func (l *Loader) Load(name string) (*geojson.FeatureCollection, error) {
	clean, err := cleanName(name)
	if err != nil {
		observability.ObserveStaticLoad("error")
		return nil, err
	}
	key := keys.Static(clean)
	if fc, ok := l.cache.Get(key); ok {
		observability.ObserveStaticLoad("hit")
		return fc, nil
	}

	raw, err := fs.ReadFile(l.fsys, clean)
	if err != nil {
		observability.ObserveStaticLoad("error")
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		observability.ObserveStaticLoad("error")
		return nil, fmt.Errorf("decode %s: %w", clean, err)
	}

	observability.ObserveStaticLoad("miss")
	l.cache.Add(key, fc)
	return fc, nil
}

// Evict drops a cached file so the next Load re-reads it.
func (l *Loader) Evict(name string) bool {
	clean, err := cleanName(name)
	if err != nil {
		return false
	}
	return l.cache.Remove(keys.Static(clean))
}

func (l *Loader) Cached() int { return l.cache.Len() }

func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(name)), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	return name, nil
}
