// Package router exposes map sessions over HTTP.
package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/core/observability"
	"github.com/mohammed-shakir/botanitours-map/internal/popup"
	"github.com/mohammed-shakir/botanitours-map/internal/render"
	"github.com/mohammed-shakir/botanitours-map/internal/session"
)

type Deps struct {
	Sessions    *session.Registry
	DefaultView model.Viewport
	Log         *slog.Logger
}

type api struct {
	Deps
}

// New returns the session API routes.
func New(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Post("/sessions", instrument("/sessions", a.createSession))
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Delete("/", instrument("/sessions/{id}", a.deleteSession))
		r.Post("/viewport", instrument("/sessions/{id}/viewport", a.viewport))
		r.Put("/filter", instrument("/sessions/{id}/filter", a.filter))
		r.Get("/layer", instrument("/sessions/{id}/layer", a.layer))
		r.Post("/markers/{marker}/click", instrument("/sessions/{id}/markers/{marker}/click", a.click))
	})
	return r
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (a *api) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := a.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
	}
	return s, ok
}

type sessionResponse struct {
	ID     string     `json:"id"`
	Center [2]float64 `json:"center"`
	Zoom   int        `json:"zoom"`
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	center := a.DefaultView.Center()
	zoom := a.DefaultView.Zoom
	if r.ContentLength != 0 {
		var req createRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.Center) == 2 {
			if req.Center[0] < -180 || req.Center[0] > 180 || req.Center[1] < -90 || req.Center[1] > 90 {
				writeError(w, http.StatusBadRequest, "center out of range")
				return
			}
			center = orb.Point{req.Center[0], req.Center[1]}
		} else if len(req.Center) != 0 {
			writeError(w, http.StatusBadRequest, "center: expected [lon,lat]")
			return
		}
		if req.Zoom != nil {
			if *req.Zoom < 0 || *req.Zoom > maxZoom {
				writeError(w, http.StatusBadRequest, "zoom out of range")
				return
			}
			zoom = *req.Zoom
		}
	}

	s := a.Sessions.Create(model.NewViewport(center[0], center[1], center[0], center[1], zoom))
	a.Log.DebugContext(r.Context(), "session created", "session_id", s.ID())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: s.ID(), Center: [2]float64{center[0], center[1]}, Zoom: zoom})
}

func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.Sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type viewResponse struct {
	Outcome string                     `json:"outcome"`
	Plan    string                     `json:"plan,omitempty"`
	File    string                     `json:"file,omitempty"`
	Notice  string                     `json:"notice,omitempty"`
	PanTo   []float64                  `json:"pan_to,omitempty"`
	ETag    string                     `json:"etag"`
	Layer   *geojson.FeatureCollection `json:"layer"`
}

func toViewResponse(res session.Result) viewResponse {
	out := viewResponse{
		Outcome: string(res.Outcome),
		Notice:  res.Notice,
		ETag:    res.Layer.ETag(),
		Layer:   res.Layer.FeatureCollection(),
	}
	if res.Plan != nil {
		out.Plan = res.Plan.Type.String()
		out.File = res.Plan.File
	}
	if res.PanTo != nil {
		out.PanTo = []float64{res.PanTo[0], res.PanTo[1]}
	}
	return out
}

func (a *api) viewport(w http.ResponseWriter, r *http.Request) {
	s, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var req viewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vp, err := parseViewport(req.BBox, req.Zoom)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var res session.Result
	switch req.Event {
	case "pan":
		res = s.OnPan(r.Context(), vp)
	case "zoom":
		res = s.OnZoom(r.Context(), vp)
	default:
		writeError(w, http.StatusBadRequest, `event must be "pan" or "zoom"`)
		return
	}
	w.Header().Set("ETag", res.Layer.ETag())
	writeJSON(w, http.StatusOK, toViewResponse(res))
}

func (a *api) filter(w http.ResponseWriter, r *http.Request) {
	s, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var req filterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := parseFilter(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vp, err := parseViewport(req.BBox, req.Zoom)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.SetFilter(r.Context(), f, vp)
	w.Header().Set("ETag", res.Layer.ETag())
	writeJSON(w, http.StatusOK, toViewResponse(res))
}

func (a *api) layer(w http.ResponseWriter, r *http.Request) {
	s, ok := a.lookup(w, r)
	if !ok {
		return
	}
	l := s.Layer()
	etag := l.ETag()
	w.Header().Set("ETag", etag)
	if t := s.LastFetch(); !t.IsZero() {
		w.Header().Set("Last-Modified", t.UTC().Format(http.TimeFormat))
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_ = json.NewEncoder(w).Encode(l.FeatureCollection())
}

type clickResponse struct {
	Action string    `json:"action"`
	HTML   string    `json:"html,omitempty"`
	Center []float64 `json:"center,omitempty"`
	Zoom   *int      `json:"zoom,omitempty"`
}

func (a *api) click(w http.ResponseWriter, r *http.Request) {
	s, ok := a.lookup(w, r)
	if !ok {
		return
	}
	res, err := s.Click(r.Context(), chi.URLParam(r, "marker"))
	switch {
	case errors.Is(err, session.ErrUnknownMarker), errors.Is(err, popup.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, popup.ErrNoStore):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "popup lookup failed")
		return
	}

	out := clickResponse{Action: res.Action.String()}
	if res.Action == render.ActionDrillDown {
		zoom := res.Zoom
		out.Center = []float64{res.Center[0], res.Center[1]}
		out.Zoom = &zoom
	} else {
		out.HTML = res.HTML
	}
	writeJSON(w, http.StatusOK, out)
}
