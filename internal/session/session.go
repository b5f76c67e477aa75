// Package session holds one map screen's filter, viewport and displayed layer
// and decides, per event, whether and how to fetch.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/core/observability"
	"github.com/mohammed-shakir/botanitours-map/internal/logger"
	"github.com/mohammed-shakir/botanitours-map/internal/popup"
	"github.com/mohammed-shakir/botanitours-map/internal/render"
	"github.com/mohammed-shakir/botanitours-map/internal/store"
	"github.com/mohammed-shakir/botanitours-map/internal/strategy"
	"github.com/mohammed-shakir/botanitours-map/internal/viewport"
)

const NoResultsNotice = "No results found."

var ErrUnknownMarker = errors.New("unknown marker")

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeReused    Outcome = "reused"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeStale     Outcome = "stale_discarded"
)

// StaticSource is satisfied by *staticdata.Loader.
type StaticSource interface {
	Load(name string) (*geojson.FeatureCollection, error)
}

type Deps struct {
	Strategy *strategy.Strategy
	Static   StaticSource
	Store    store.Querier // nil when the store failed to open
	Popups   popup.Describer
	Log      *slog.Logger

	QueryTimeout time.Duration
}

// Result describes what an event did to the displayed layer.
type Result struct {
	Outcome Outcome
	Plan    *strategy.Plan
	Notice  string
	PanTo   *orb.Point
	Layer   render.Layer
	Err     error
}

type Session struct {
	id   string
	deps Deps

	mu        sync.Mutex
	filter    model.Filter
	vp        model.Viewport
	lastKey   model.FetchKey
	extent    *orb.Bound
	layer     render.Layer
	issued    uint64
	want      model.FetchKey // key of the latest decision, fetched or not
	gen       uint64
	lastFetch time.Time
}

func New(id string, vp model.Viewport, deps Deps) *Session {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.QueryTimeout <= 0 {
		deps.QueryTimeout = 5 * time.Second
	}
	return &Session{id: id, deps: deps, filter: model.DefaultFilter(), vp: vp}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Filter() model.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *Session) Viewport() model.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vp
}

func (s *Session) Layer() render.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layer
}

// LastFetch is the completion time of the last applied fetch, zero if none.
func (s *Session) LastFetch() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFetch
}

// OnZoom redraws for the new zoom level without panning.
func (s *Session) OnZoom(ctx context.Context, vp model.Viewport) Result {
	return s.refresh(ctx, vp, false, false)
}

// OnPan refreshes live data only when the fetched extent no longer covers the view.
func (s *Session) OnPan(ctx context.Context, vp model.Viewport) Result {
	opts := s.deps.Strategy.Options()

	s.mu.Lock()
	s.vp = vp
	f := s.filter
	extent := s.extent
	s.mu.Unlock()

	plan := s.deps.Strategy.Decide(vp, f)
	switch {
	case vp.Zoom <= s.deps.Strategy.Clusters().MaxZoom(),
		plan.Type == strategy.PlanStaticCluster,
		plan.Type == strategy.PlanLiveFiltered && !opts.TextFilterSpatialBound:
		return s.unchanged(plan)
	}
	if !viewport.IsRefreshRequired(vp, extent) {
		return s.unchanged(plan)
	}
	return s.refresh(ctx, vp, false, true)
}

// SetFilter applies a confirmed filter and redraws, panning to the nearest result.
func (s *Session) SetFilter(ctx context.Context, f model.Filter, vp model.Viewport) Result {
	if f.Kind == "" {
		f.Kind = model.KindNone
	}
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	return s.refresh(ctx, vp, true, false)
}

func (s *Session) unchanged(plan strategy.Plan) Result {
	s.mu.Lock()
	s.supersede(plan.Key())
	layer := s.layer
	s.mu.Unlock()
	observability.ObserveFetch(plan.Type.String(), string(OutcomeUnchanged))
	return Result{Outcome: OutcomeUnchanged, Plan: &plan, Layer: layer}
}

// supersede invalidates in-flight tickets when the view no longer wants their
// data. The caller holds s.mu.
func (s *Session) supersede(key model.FetchKey) {
	if s.want != key {
		s.issued++
		s.want = key
	}
}

// needsExtent reports whether plan's data is bounded by the fetched extent.
func (s *Session) needsExtent(plan strategy.Plan) bool {
	switch plan.Type {
	case strategy.PlanLiveExtent:
		return true
	case strategy.PlanLiveFiltered:
		return s.deps.Strategy.Options().TextFilterSpatialBound
	default:
		return false
	}
}

func (s *Session) refresh(ctx context.Context, vp model.Viewport, pan, force bool) Result {
	s.mu.Lock()
	s.vp = vp
	plan := s.deps.Strategy.Decide(vp, s.filter)
	key := plan.Key()
	bounded := s.needsExtent(plan)
	if !force && !s.lastKey.IsZero() && key == s.lastKey &&
		(!bounded || !viewport.IsRefreshRequired(vp, s.extent)) {
		s.supersede(key)
		layer := s.layer
		s.mu.Unlock()
		observability.ObserveFetch(plan.Type.String(), string(OutcomeReused))
		return Result{Outcome: OutcomeReused, Plan: &plan, Layer: layer}
	}
	s.issued++
	s.want = key
	ticket := s.issued
	s.mu.Unlock()

	ctx = logger.WithPlan(logger.WithSession(ctx, s.id), plan.Type.String())
	log := s.deps.Log

	if plan.Type != strategy.PlanStaticCluster && s.deps.Store == nil {
		log.DebugContext(ctx, "no spatial store, live fetch skipped")
		observability.ObserveFetch(plan.Type.String(), string(OutcomeSkipped))
		return Result{Outcome: OutcomeSkipped, Plan: &plan, Layer: s.Layer()}
	}

	var extent *orb.Bound
	if bounded {
		b := viewport.RecordFetch(vp)
		extent = &b
	}

	layer, err := s.fetch(ctx, plan, extent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deps.Strategy.Options().DiscardStaleResults && ticket != s.issued {
		log.DebugContext(ctx, "stale fetch result discarded", "ticket", ticket, "latest", s.issued)
		observability.ObserveFetch(plan.Type.String(), string(OutcomeStale))
		return Result{Outcome: OutcomeStale, Plan: &plan, Layer: s.layer, Err: err}
	}
	if err != nil {
		log.ErrorContext(ctx, "fetch failed, keeping displayed layer", "key", key.String(), "err", err)
		observability.ObserveFetch(plan.Type.String(), string(OutcomeFailed))
		return Result{Outcome: OutcomeFailed, Plan: &plan, Layer: s.layer, Err: err}
	}

	s.gen++
	layer = layer.Stamp(s.gen)
	layer.Key = key
	s.layer = layer
	s.lastKey = key
	s.extent = extent
	s.lastFetch = time.Now()
	observability.ObserveFetch(plan.Type.String(), string(OutcomeApplied))
	log.DebugContext(ctx, "layer replaced", "key", key.String(), "markers", layer.Len(), "generation", s.gen)

	res := Result{Outcome: OutcomeApplied, Plan: &plan, Layer: layer}
	if plan.Type != strategy.PlanStaticCluster && layer.Len() == 0 {
		res.Notice = NoResultsNotice
	}
	if pan && s.deps.Strategy.Options().PanToNearest {
		if m, ok := render.Nearest(layer, s.vp.Center()); ok {
			p := m.Point
			res.PanTo = &p
		}
	}
	return res
}

func (s *Session) fetch(ctx context.Context, plan strategy.Plan, extent *orb.Bound) (render.Layer, error) {
	if plan.Type == strategy.PlanStaticCluster {
		if s.deps.Static == nil {
			return render.Layer{}, errors.New("no static data source")
		}
		fc, err := s.deps.Static.Load(plan.File)
		if err != nil {
			return render.Layer{}, fmt.Errorf("load %s: %w", plan.File, err)
		}
		return render.FromFeatures(fc)
	}

	var q store.Query
	if plan.Type == strategy.PlanLiveFiltered {
		var err error
		if q, err = store.TextQuery(plan.Filter, extent); err != nil {
			return render.Layer{}, err
		}
	} else {
		q = store.ExtentQuery(*extent, plan.Kind)
	}

	qctx, cancel := context.WithTimeout(ctx, s.deps.QueryTimeout)
	defer cancel()
	rows, err := s.deps.Store.Query(qctx, q)
	if err != nil {
		return render.Layer{}, fmt.Errorf("%s query: %w", q.Name, err)
	}
	return render.FromRows(rows)
}

// ClickResult is either a popup body or a drill-down target.
type ClickResult struct {
	Action render.Action
	HTML   string
	Center orb.Point
	Zoom   int
}

// Click resolves a tap on markerID in the currently displayed layer.
func (s *Session) Click(ctx context.Context, markerID string) (ClickResult, error) {
	s.mu.Lock()
	m, ok := s.layer.Marker(markerID)
	zoom := s.vp.Zoom
	s.mu.Unlock()
	if !ok {
		return ClickResult{}, fmt.Errorf("%w: %q", ErrUnknownMarker, markerID)
	}

	r := render.Click(m, zoom)
	if r.Action == render.ActionDrillDown {
		return ClickResult{Action: r.Action, Center: r.Center, Zoom: r.Zoom}, nil
	}
	if s.deps.Popups == nil {
		return ClickResult{}, popup.ErrNoStore
	}
	d, err := s.deps.Popups.Describe(logger.WithSession(ctx, s.id), r.Ref)
	if err != nil {
		s.deps.Log.ErrorContext(ctx, "popup lookup failed", "id", r.Ref.ID, "type", string(r.Ref.Category), "err", err)
		return ClickResult{}, err
	}
	html, err := popup.HTML(d)
	if err != nil {
		return ClickResult{}, err
	}
	return ClickResult{Action: r.Action, HTML: html}, nil
}

// forgetExtent drops the cached extent and fetch key when they intersect b.
func (s *Session) forgetExtent(b orb.Bound) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extent == nil || !s.extent.Intersects(b) {
		return false
	}
	s.extent = nil
	s.lastKey = model.FetchKey{}
	return true
}

// forgetStatic drops the fetch key when the displayed layer came from file.
func (s *Session) forgetStatic(file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastKey != model.StaticKey(file) {
		return false
	}
	s.lastKey = model.FetchKey{}
	return true
}
