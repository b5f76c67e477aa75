// Package strategy picks where the data for a viewport comes from.
package strategy

import (
	"strings"

	"github.com/mohammed-shakir/botanitours-map/internal/clusters"
	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
)

type PlanType int

const (
	PlanStaticCluster PlanType = iota
	PlanLiveFiltered
	PlanLiveExtent
)

func (t PlanType) String() string {
	switch t {
	case PlanStaticCluster:
		return "static_cluster"
	case PlanLiveFiltered:
		return "live_filtered"
	default:
		return "live_extent"
	}
}

type Plan struct {
	Type   PlanType
	File   string       // static cluster file name
	Filter model.Filter // text filter for live filtered queries
	Kind   model.Kind   // category restriction for live extent queries
}

func (p Plan) Key() model.FetchKey {
	switch p.Type {
	case PlanStaticCluster:
		return model.StaticKey(p.File)
	case PlanLiveFiltered:
		return model.FilteredKey(p.Filter)
	default:
		return model.ExtentKey(p.Kind)
	}
}

// Options are the per-screen feature switches.
type Options struct {
	GardenStaticFile       bool
	TextFilter             bool
	PanToNearest           bool
	TextFilterSpatialBound bool
	DiscardStaleResults    bool
}

func DefaultOptions() Options {
	return Options{
		GardenStaticFile:    true,
		TextFilter:          true,
		PanToNearest:        true,
		DiscardStaleResults: true,
	}
}

type Strategy struct {
	clusters clusters.Mapping
	opts     Options
}

func New(m clusters.Mapping, opts Options) *Strategy {
	return &Strategy{clusters: m, opts: opts}
}

func (s *Strategy) Options() Options { return s.opts }

func (s *Strategy) Clusters() clusters.Mapping { return s.clusters }

// TextActive reports whether f should be served by a free-text query.
func (s *Strategy) TextActive(f model.Filter) bool {
	return s.opts.TextFilter && f.HasText()
}

// Decide orders: text filter, then the single gardens file, then the zoom's cluster file,
// then a live extent query.
func (s *Strategy) Decide(vp model.Viewport, f model.Filter) Plan {
	kind := f.Kind
	if kind == "" {
		kind = model.KindNone
	}

	if s.TextActive(f) {
		nf := f
		nf.Kind = kind
		nf.Text = strings.TrimSpace(f.Text)
		return Plan{Type: PlanLiveFiltered, Filter: nf}
	}

	if kind == model.KindGarden {
		if s.opts.GardenStaticFile {
			return Plan{Type: PlanStaticCluster, File: clusters.GardensFile}
		}
		return Plan{Type: PlanLiveExtent, Kind: kind}
	}

	if d, ok := s.clusters.Divisor(vp.Zoom); ok {
		return Plan{Type: PlanStaticCluster, File: clusters.FileName(d, kind)}
	}
	return Plan{Type: PlanLiveExtent, Kind: kind}
}
