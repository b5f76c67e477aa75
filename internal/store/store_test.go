package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
)

func TestExtentQuery_BindsBoundsAndKind(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-3.8, 54.9}, Max: orb.Point{-3.4, 55.2}}

	q := ExtentQuery(b, model.KindNone)
	if strings.Contains(q.Text, "positionable_type = ?") {
		t.Fatalf("kind None must not restrict category: %s", q.Text)
	}
	if len(q.Args) != 4 || q.Args[0] != -3.8 || q.Args[1] != -3.4 || q.Args[2] != 54.9 || q.Args[3] != 55.2 {
		t.Fatalf("unexpected args %v", q.Args)
	}

	q = ExtentQuery(b, model.KindGarden)
	if !strings.HasSuffix(q.Text, "AND i.positionable_type = ?") {
		t.Fatalf("missing category predicate: %s", q.Text)
	}
	if q.Args[4] != "Garden" {
		t.Fatalf("unexpected kind arg %v", q.Args[4])
	}
}

func TestTextQuery_TargetsBySubtype(t *testing.T) {
	cases := []struct {
		f    model.Filter
		want string
	}{
		{model.Filter{Kind: model.KindPlant, Subtype: model.SubtypeCommon, Text: "daisy"}, "JOIN plant_common_names t ON t.plant_id"},
		{model.Filter{Kind: model.KindPlant, Subtype: model.SubtypeScientific, Text: "rosa"}, "LOWER(t.scientific_name)"},
		{model.Filter{Kind: model.KindPlant, Text: "rosa"}, "JOIN plants t ON t.OGC_FID"},
		{model.Filter{Kind: model.KindGarden, Text: "botanic"}, "JOIN gardens t ON t.OGC_FID"},
	}
	for _, c := range cases {
		q, err := TextQuery(c.f, nil)
		if err != nil {
			t.Fatalf("%+v: %v", c.f, err)
		}
		if !strings.Contains(q.Text, c.want) {
			t.Fatalf("%+v: %q missing %q", c.f, q.Text, c.want)
		}
		if strings.Contains(q.Text, "BETWEEN") {
			t.Fatalf("unbounded text query must not carry extent: %s", q.Text)
		}
		if q.Args[1] != string(c.f.Kind) {
			t.Fatalf("kind arg=%v", q.Args[1])
		}
	}
}

func TestTextQuery_EscapesLikeAndBounds(t *testing.T) {
	b := orb.Bound{Min: orb.Point{1, 2}, Max: orb.Point{3, 4}}
	q, err := TextQuery(model.Filter{Kind: model.KindGarden, Text: " 50%_off "}, &b)
	if err != nil {
		t.Fatalf("TextQuery: %v", err)
	}
	if q.Args[0] != `%50\%\_off%` {
		t.Fatalf("like pattern=%v", q.Args[0])
	}
	if !strings.Contains(q.Text, "BETWEEN") || len(q.Args) != 6 {
		t.Fatalf("expected bounded query, got %s %v", q.Text, q.Args)
	}
}

func TestTextQuery_RequiresKind(t *testing.T) {
	if _, err := TextQuery(model.Filter{Kind: model.KindNone, Text: "x"}, nil); err == nil {
		t.Fatalf("expected error without kind")
	}
}

func TestColumnHelpers(t *testing.T) {
	if n, err := Int64([]byte("42")); err != nil || n != 42 {
		t.Fatalf("Int64 bytes: %d %v", n, err)
	}
	if _, err := Int64(true); !errors.Is(err, ErrBadColumn) {
		t.Fatalf("expected ErrBadColumn, got %v", err)
	}
	if y, err := OptInt(nil); err != nil || y != nil {
		t.Fatalf("OptInt nil: %v %v", y, err)
	}
	if y, err := OptInt(int64(1998)); err != nil || y == nil || *y != 1998 {
		t.Fatalf("OptInt: %v %v", y, err)
	}
	if s, err := String([]byte("x")); err != nil || s != "x" {
		t.Fatalf("String: %q %v", s, err)
	}
}
