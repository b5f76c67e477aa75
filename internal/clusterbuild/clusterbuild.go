// Package clusterbuild produces the static cluster and garden files served at
// low zoom levels from the POIs in the spatial store.
package clusterbuild

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/botanitours-map/internal/clusters"
	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/mapper"
	"github.com/mohammed-shakir/botanitours-map/internal/render"
	"github.com/mohammed-shakir/botanitours-map/internal/store"
)

type Config struct {
	// divisor -> H3 resolution; divisors without an entry use DefaultRes
	Res        map[string]int
	DefaultRes int
}

// ParseRes reads "1000=3,100=5".
func ParseRes(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, r, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("bad resolution entry %q (want divisor=res)", part)
		}
		res, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil || res < 0 || res > 15 {
			return nil, fmt.Errorf("bad resolution in %q", part)
		}
		out[strings.TrimSpace(d)] = res
	}
	return out, nil
}

type Builder struct {
	m   mapper.Interface
	cfg Config
}

func New(m mapper.Interface, cfg Config) *Builder {
	return &Builder{m: m, cfg: cfg}
}

func (b *Builder) resFor(divisor string) int {
	if r, ok := b.cfg.Res[divisor]; ok {
		return r
	}
	return b.cfg.DefaultRes
}

// LoadPOIs reads every positioned POI from the store.
func LoadPOIs(ctx context.Context, q store.Querier) ([]model.POI, error) {
	if q == nil {
		return nil, errors.New("no spatial store")
	}
	rows, err := q.Query(ctx, store.AllPOIsQuery())
	if err != nil {
		return nil, fmt.Errorf("load pois: %w", err)
	}
	l, err := render.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("decode pois: %w", err)
	}
	out := make([]model.POI, 0, l.Len())
	for _, m := range l.Markers {
		out = append(out, model.POI{POIRef: m.Ref, Point: m.Point})
	}
	return out, nil
}

// Build returns file name -> collection for every divisor plus the gardens file.
func (b *Builder) Build(pois []model.POI, divisors []string) (map[string]*geojson.FeatureCollection, error) {
	maxRes := -1
	for _, d := range divisors {
		if r := b.resFor(d); r > maxRes {
			maxRes = r
		}
	}

	// index once at the finest resolution, coarser ones are parents
	base := make([]string, len(pois))
	if maxRes >= 0 {
		for i, p := range pois {
			c, err := b.m.CellForPoint(p.Point, maxRes)
			if err != nil {
				return nil, fmt.Errorf("poi %d: %w", p.ID, err)
			}
			base[i] = c
		}
	}

	files := make(map[string]*geojson.FeatureCollection, 2*len(divisors)+1)
	for _, d := range divisors {
		res := b.resFor(d)
		cells := make([]string, len(pois))
		for i := range pois {
			c, err := b.m.ToParent(base[i], res)
			if err != nil {
				return nil, fmt.Errorf("divisor %s: %w", d, err)
			}
			cells[i] = c
		}

		all, err := b.cluster(pois, cells, func(model.POI) bool { return true })
		if err != nil {
			return nil, err
		}
		files[clusters.FileName(d, model.KindNone)] = all

		plants, err := b.cluster(pois, cells, func(p model.POI) bool { return p.Category == model.KindPlant })
		if err != nil {
			return nil, err
		}
		files[clusters.FileName(d, model.KindPlant)] = plants
	}

	gardens := geojson.NewFeatureCollection()
	for _, p := range pois {
		if p.Category == model.KindGarden {
			gardens.Append(single(p))
		}
	}
	files[clusters.GardensFile] = gardens
	return files, nil
}

func (b *Builder) cluster(pois []model.POI, cells []string, keep func(model.POI) bool) (*geojson.FeatureCollection, error) {
	groups := map[string][]int{}
	for i, p := range pois {
		if keep(p) {
			groups[cells[i]] = append(groups[cells[i]], i)
		}
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fc := geojson.NewFeatureCollection()
	for _, cell := range keys {
		members := groups[cell]
		if len(members) == 1 {
			fc.Append(single(pois[members[0]]))
			continue
		}
		center, err := b.m.CellCenter(cell)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", cell, err)
		}
		f := geojson.NewFeature(center)
		f.Properties["count"] = len(members)
		f.Properties["cell"] = cell

		category := model.KindGarden
		for _, i := range members {
			if pois[i].Category != model.KindGarden {
				category = model.KindPlant
				break
			}
		}
		f.Properties["type"] = string(category)
		if category == model.KindGarden {
			// garden groups still open a popup, for the first member
			f.Properties["id"] = pois[members[0]].ID
		}
		fc.Append(f)
	}
	return fc, nil
}

func single(p model.POI) *geojson.Feature {
	f := geojson.NewFeature(p.Point)
	f.Properties["id"] = p.ID
	f.Properties["type"] = string(p.Category)
	f.Properties["count"] = 1
	if p.Year != nil {
		f.Properties["year"] = *p.Year
	}
	return f
}

// Write stores each collection under dir, replacing files atomically.
func Write(dir string, files map[string]*geojson.FeatureCollection) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for name, fc := range files {
		raw, err := json.Marshal(fc)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		dst := filepath.Join(dir, name)
		tmp := dst + ".tmp"
		if err := os.WriteFile(tmp, raw, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := os.Rename(tmp, dst); err != nil {
			return fmt.Errorf("rename %s: %w", dst, err)
		}
	}
	return nil
}
