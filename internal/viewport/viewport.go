// Package viewport decides whether a previously fetched extent still covers the map view.
package viewport

import (
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
)

// fraction of the view span added on each side of a fetched extent
const padRatio = 0.5

// IsRefreshRequired returns true when nothing is cached or the cached extent
// does not contain every corner of the viewport.
func IsRefreshRequired(vp model.Viewport, cached *orb.Bound) bool {
	if cached == nil {
		return true
	}
	return !(cached.Contains(vp.Bound.Min) && cached.Contains(vp.Bound.Max))
}

// RecordFetch returns the extent a live query for vp should cover.
func RecordFetch(vp model.Viewport) orb.Bound {
	latPad := (vp.Bound.Max[1] - vp.Bound.Min[1]) * padRatio
	lonPad := (vp.Bound.Max[0] - vp.Bound.Min[0]) * padRatio
	return orb.Bound{
		Min: orb.Point{vp.Bound.Min[0] - lonPad, vp.Bound.Min[1] - latPad},
		Max: orb.Point{vp.Bound.Max[0] + lonPad, vp.Bound.Max[1] + latPad},
	}
}
