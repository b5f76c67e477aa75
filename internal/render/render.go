// Package render turns fetch results into the marker layer shown on the map.
package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/store"
)

const (
	ClassMarker    = "marker-icon"
	ClassMarkerRed = "marker-icon-red"
	ClassCluster   = "cluster-icon"

	iconSize = 40

	// zoom levels added when a cluster is tapped
	DrillDownZoomStep = 2
)

var ErrMalformedGeometry = errors.New("malformed geometry")

type Action int

const (
	ActionPopup Action = iota
	ActionDrillDown
)

func (a Action) String() string {
	if a == ActionDrillDown {
		return "drilldown"
	}
	return "popup"
}

type Icon struct {
	Class string
	HTML  string
	Size  [2]int
}

type Marker struct {
	ID     string
	Point  orb.Point
	Icon   Icon
	Count  int
	Action Action
	Ref    model.POIRef
}

// Layer is the full set of markers from one fetch. It is replaced, never merged.
type Layer struct {
	Markers    []Marker
	Key        model.FetchKey
	Generation uint64
}

func (l Layer) Len() int { return len(l.Markers) }

// MarkerID is "<generation>.<index>"; an id from an older layer never resolves.
func MarkerID(gen uint64, i int) string {
	return strconv.FormatUint(gen, 10) + "." + strconv.Itoa(i)
}

// Stamp returns the layer tagged with gen and its markers renumbered for it.
func (l Layer) Stamp(gen uint64) Layer {
	ms := make([]Marker, len(l.Markers))
	copy(ms, l.Markers)
	for i := range ms {
		ms[i].ID = MarkerID(gen, i)
	}
	l.Markers = ms
	l.Generation = gen
	return l
}

func (l Layer) Marker(id string) (Marker, bool) {
	g, idx, ok := strings.Cut(id, ".")
	if !ok {
		return Marker{}, false
	}
	gen, err := strconv.ParseUint(g, 10, 64)
	if err != nil || gen != l.Generation {
		return Marker{}, false
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(l.Markers) {
		return Marker{}, false
	}
	return l.Markers[i], true
}

func iconFor(category model.Kind, count int) Icon {
	ic := Icon{Class: ClassMarker, Size: [2]int{iconSize, iconSize}}
	switch {
	case count > 1:
		ic.Class = ClassCluster
		ic.HTML = `<div class="cluster-icon-text">` + strconv.Itoa(count) + `</div>`
	case category == model.KindGarden:
		ic.Class = ClassMarkerRed
	}
	return ic
}

func actionFor(category model.Kind, count int) Action {
	if count == 1 || category == model.KindGarden {
		return ActionPopup
	}
	return ActionDrillDown
}

// FromFeatures renders a static, possibly clustered, feature collection.
// A feature without a count is a single POI.
func FromFeatures(fc *geojson.FeatureCollection) (Layer, error) {
	if fc == nil {
		return Layer{}, nil
	}
	out := Layer{Markers: make([]Marker, 0, len(fc.Features))}
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			return Layer{}, fmt.Errorf("feature %d: %w: missing geometry", i, ErrMalformedGeometry)
		}
		props := f.Properties
		category := model.Kind(props.MustString("type", string(model.KindPlant)))
		count := props.MustInt("count", 1)

		ref := model.POIRef{Category: category}
		if v, ok := props["id"]; ok && v != nil {
			id, err := store.Int64(v)
			if err != nil {
				return Layer{}, fmt.Errorf("feature %d id: %w", i, err)
			}
			ref.ID = id
		} else if f.ID != nil {
			if id, err := store.Int64(f.ID); err == nil {
				ref.ID = id
			}
		}
		if v, ok := props["year"]; ok && v != nil {
			y, err := store.OptInt(v)
			if err != nil {
				return Layer{}, fmt.Errorf("feature %d year: %w", i, err)
			}
			ref.Year = y
		}

		out.Markers = append(out.Markers, Marker{
			ID:     MarkerID(0, i),
			Point:  f.Geometry.Bound().Center(),
			Icon:   iconFor(category, count),
			Count:  count,
			Action: actionFor(category, count),
			Ref:    ref,
		})
	}
	return out, nil
}

// FromRows renders live rows (id, geometry GeoJSON, category, year?), one marker each.
func FromRows(rows []store.Row) (Layer, error) {
	out := Layer{Markers: make([]Marker, 0, len(rows))}
	for i, r := range rows {
		if len(r) < 3 {
			return Layer{}, fmt.Errorf("row %d: want at least 3 columns, got %d", i, len(r))
		}
		id, err := store.Int64(r[0])
		if err != nil {
			return Layer{}, fmt.Errorf("row %d id: %w", i, err)
		}
		raw, err := store.String(r[1])
		if err != nil {
			return Layer{}, fmt.Errorf("row %d geometry: %w", i, err)
		}
		pt, err := decodePoint(raw)
		if err != nil {
			return Layer{}, fmt.Errorf("row %d: %w", i, err)
		}
		cat, err := store.String(r[2])
		if err != nil {
			return Layer{}, fmt.Errorf("row %d category: %w", i, err)
		}
		var year *int
		if len(r) > 3 {
			if year, err = store.OptInt(r[3]); err != nil {
				return Layer{}, fmt.Errorf("row %d year: %w", i, err)
			}
		}
		category := model.Kind(cat)
		out.Markers = append(out.Markers, Marker{
			ID:     MarkerID(0, i),
			Point:  pt,
			Icon:   iconFor(category, 1),
			Count:  1,
			Action: ActionPopup,
			Ref:    model.POIRef{ID: id, Category: category, Year: year},
		})
	}
	return out, nil
}

func decodePoint(raw string) (orb.Point, error) {
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: %v", ErrMalformedGeometry, err)
	}
	pt, ok := g.Geometry().(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: want Point, got %s", ErrMalformedGeometry, g.Type)
	}
	return pt, nil
}

type ClickResult struct {
	Action Action
	Ref    model.POIRef
	Center orb.Point
	Zoom   int
}

// Click resolves a tap: single POIs and gardens open a popup, clusters drill down.
func Click(m Marker, zoom int) ClickResult {
	if m.Action == ActionDrillDown {
		return ClickResult{Action: ActionDrillDown, Center: m.Point, Zoom: zoom + DrillDownZoomStep}
	}
	return ClickResult{Action: ActionPopup, Ref: m.Ref}
}

// Nearest returns the marker closest to p by great-circle distance.
func Nearest(l Layer, p orb.Point) (Marker, bool) {
	if len(l.Markers) == 0 {
		return Marker{}, false
	}
	best := 0
	bestD := geo.Distance(p, l.Markers[0].Point)
	for i := 1; i < len(l.Markers); i++ {
		if d := geo.Distance(p, l.Markers[i].Point); d < bestD {
			best, bestD = i, d
		}
	}
	return l.Markers[best], true
}

// FeatureCollection serialises the layer for the map client.
func (l Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range l.Markers {
		f := geojson.NewFeature(m.Point)
		f.Properties["marker_id"] = m.ID
		f.Properties["icon_class"] = m.Icon.Class
		f.Properties["icon_size"] = []int{m.Icon.Size[0], m.Icon.Size[1]}
		if m.Icon.HTML != "" {
			f.Properties["icon_html"] = m.Icon.HTML
		}
		f.Properties["action"] = m.Action.String()
		f.Properties["count"] = m.Count
		f.Properties["type"] = string(m.Ref.Category)
		if m.Action == ActionPopup {
			f.Properties["id"] = m.Ref.ID
			if m.Ref.Year != nil {
				f.Properties["year"] = *m.Ref.Year
			}
		}
		fc.Append(f)
	}
	return fc
}

// ETag changes whenever the layer is replaced.
func (l Layer) ETag() string {
	return fmt.Sprintf(`"%016x-%d"`, l.Key.Hash(), l.Generation)
}
