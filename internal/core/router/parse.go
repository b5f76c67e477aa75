package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
)

const (
	maxBodyBytes = 16 << 10
	maxZoom      = 22
	maxTextLen   = 200
)

type viewRequest struct {
	Event string    `json:"event"`
	BBox  []float64 `json:"bbox"`
	Zoom  *int      `json:"zoom"`
}

type filterRequest struct {
	Kind    string    `json:"kind"`
	Subtype string    `json:"subtype"`
	Text    string    `json:"text"`
	BBox    []float64 `json:"bbox"`
	Zoom    *int      `json:"zoom"`
}

type createRequest struct {
	Center []float64 `json:"center"`
	Zoom   *int      `json:"zoom"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// parseViewport validates [w,s,e,n] in EPSG:4326 and a zoom level.
func parseViewport(bbox []float64, zoom *int) (model.Viewport, error) {
	if len(bbox) != 4 {
		return model.Viewport{}, errors.New("bbox: expected 4 values: west,south,east,north")
	}
	w, s, e, n := bbox[0], bbox[1], bbox[2], bbox[3]
	if !(w >= -180 && w <= 180 && e >= -180 && e <= 180) {
		return model.Viewport{}, errors.New("bbox: longitude must be in [-180,180]")
	}
	if !(s >= -90 && s <= 90 && n >= -90 && n <= 90) {
		return model.Viewport{}, errors.New("bbox: latitude must be in [-90,90]")
	}
	if e <= w || n <= s {
		return model.Viewport{}, errors.New("bbox: coordinates must satisfy east>west and north>south")
	}
	if zoom == nil {
		return model.Viewport{}, errors.New("missing required field: zoom")
	}
	if *zoom < 0 || *zoom > maxZoom {
		return model.Viewport{}, fmt.Errorf("zoom must be in [0,%d]", maxZoom)
	}
	return model.NewViewport(w, s, e, n, *zoom), nil
}

func parseFilter(req filterRequest) (model.Filter, error) {
	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		return model.Filter{}, err
	}
	sub := strings.ToLower(strings.TrimSpace(req.Subtype))
	switch sub {
	case "", model.SubtypeCommon, model.SubtypeScientific:
	default:
		return model.Filter{}, fmt.Errorf("subtype must be common or scientific, got %q", req.Subtype)
	}
	text := strings.TrimSpace(req.Text)
	if len(text) > maxTextLen {
		return model.Filter{}, fmt.Errorf("text longer than %d bytes", maxTextLen)
	}
	if kind == model.KindPlant && sub == "" {
		sub = model.SubtypeScientific
	}
	if kind != model.KindPlant {
		sub = ""
	}
	return model.Filter{Kind: kind, Subtype: sub, Text: text}, nil
}
