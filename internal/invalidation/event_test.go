package invalidation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func id(n int64) *int64 { return &n }

func TestEvent_Validate_BBoxAndPolygonMutualExclusion(t *testing.T) {
	ev := Event{
		Version: 1, Op: "update", Kind: KindPlant, TS: mustTS(),
		BBox:     &BBox{X1: -4, Y1: 55, X2: -3, Y2: 56, SRID: "EPSG:4326"},
		Geometry: json.RawMessage(`{"type":"Polygon","coordinates":[[[-4,55],[-3,55],[-3,56],[-4,56],[-4,55]]]}`),
	}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error when both bbox and geometry are set")
	}
}

func TestEvent_Validate_HappyPaths(t *testing.T) {
	cases := []Event{
		{Version: 1, Op: "update", Kind: KindPlant, TS: mustTS(), ID: id(12)},
		{Version: 1, Op: "delete", Kind: KindGarden, TS: mustTS(), ID: id(3),
			BBox: &BBox{X1: -4, Y1: 55, X2: -3, Y2: 56, SRID: "EPSG:4326"}},
		{Version: 1, Op: "insert", Kind: KindPlant, TS: mustTS(),
			Geometry: json.RawMessage(`{"type":"Point","coordinates":[-3.6,55.07]}`)},
		{Version: 1, Op: "update", Kind: KindCluster, TS: mustTS(), File: "cluster1000.json"},
	}
	for i, ev := range cases {
		if err := ev.Validate(); err != nil {
			t.Fatalf("case %d: unexpected: %v", i, err)
		}
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	cases := map[string]Event{
		"version":     {Version: 2, Op: "update", Kind: KindPlant, TS: mustTS(), ID: id(1)},
		"op":          {Version: 1, Op: "upsert", Kind: KindPlant, TS: mustTS(), ID: id(1)},
		"kind":        {Version: 1, Op: "update", Kind: "Tree", TS: mustTS(), ID: id(1)},
		"ts":          {Version: 1, Op: "update", Kind: KindPlant, ID: id(1)},
		"no target":   {Version: 1, Op: "update", Kind: KindGarden, TS: mustTS()},
		"no file":     {Version: 1, Op: "update", Kind: KindCluster, TS: mustTS()},
		"flat bbox":   {Version: 1, Op: "update", Kind: KindPlant, TS: mustTS(), BBox: &BBox{X1: 1, Y1: 55, X2: 1, Y2: 56}},
		"bad srid":    {Version: 1, Op: "update", Kind: KindPlant, TS: mustTS(), BBox: &BBox{X1: 1, Y1: 55, X2: 2, Y2: 56, SRID: "EPSG:3857"}},
		"bad geojson": {Version: 1, Op: "update", Kind: KindPlant, TS: mustTS(), Geometry: json.RawMessage(`{"type":"Nope"}`)},
	}
	for name, ev := range cases {
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEvent_Area(t *testing.T) {
	ev := Event{Geometry: json.RawMessage(`{"type":"Polygon","coordinates":[[[-4,55],[-3,55],[-3,56],[-4,56],[-4,55]]]}`)}
	b, ok, err := ev.Area()
	if err != nil || !ok {
		t.Fatalf("Area: ok=%v err=%v", ok, err)
	}
	want := orb.Bound{Min: orb.Point{-4, 55}, Max: orb.Point{-3, 56}}
	if b != want {
		t.Fatalf("bound=%v want %v", b, want)
	}

	if _, ok, _ := (Event{ID: id(1)}).Area(); ok {
		t.Fatalf("id-only event has no area")
	}
}
