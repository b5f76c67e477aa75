// Package invalidation describes data-change events published when the
// botanical store or the pre-built cluster files are updated.
package invalidation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	KindPlant   = "Plant"
	KindGarden  = "Garden"
	KindCluster = "cluster"
)

type Event struct {
	Version  int             `json:"version"`
	Op       string          `json:"op"`
	Kind     string          `json:"kind"`
	TS       time.Time       `json:"ts"`
	ID       *int64          `json:"id,omitempty"`
	File     string          `json:"file,omitempty"`
	BBox     *BBox           `json:"bbox,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	hasBBox := e.BBox != nil
	hasGeom := len(e.Geometry) > 0
	if hasBBox && hasGeom {
		return fmt.Errorf("at most one of bbox or geometry is allowed")
	}

	switch e.Kind {
	case KindCluster:
		if strings.TrimSpace(e.File) == "" {
			return fmt.Errorf("file is required for cluster events")
		}
	case KindPlant, KindGarden:
		if e.ID == nil && !hasBBox && !hasGeom {
			return fmt.Errorf("%s events need an id, bbox or geometry", e.Kind)
		}
	default:
		return fmt.Errorf("kind must be Plant|Garden|cluster")
	}

	if hasBBox {
		bb := *e.BBox
		if bb.SRID != "" && bb.SRID != "EPSG:4326" {
			return fmt.Errorf("bbox.srid must be EPSG:4326")
		}
		if !(bb.X1 >= -180 && bb.X1 <= 180 && bb.X2 >= -180 && bb.X2 <= 180) {
			return fmt.Errorf("bbox longitude out of range")
		}
		if !(bb.Y1 >= -90 && bb.Y1 <= 90 && bb.Y2 >= -90 && bb.Y2 <= 90) {
			return fmt.Errorf("bbox latitude out of range")
		}
		if !(bb.X2 > bb.X1 && bb.Y2 > bb.Y1) {
			return fmt.Errorf("bbox must satisfy x2>x1 and y2>y1")
		}
	}
	if hasGeom {
		if _, err := geojson.UnmarshalGeometry(e.Geometry); err != nil {
			return fmt.Errorf("geometry parse: %w", err)
		}
	}
	return nil
}

// Area returns the affected extent, if the event names one.
func (e Event) Area() (orb.Bound, bool, error) {
	switch {
	case e.BBox != nil:
		return orb.Bound{
			Min: orb.Point{e.BBox.X1, e.BBox.Y1},
			Max: orb.Point{e.BBox.X2, e.BBox.Y2},
		}, true, nil
	case len(e.Geometry) > 0:
		g, err := geojson.UnmarshalGeometry(e.Geometry)
		if err != nil {
			return orb.Bound{}, false, fmt.Errorf("geometry parse: %w", err)
		}
		return g.Geometry().Bound(), true, nil
	default:
		return orb.Bound{}, false, nil
	}
}
