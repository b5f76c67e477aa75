package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/store"
)

func newSeeded(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	s, err := Open(ctx, filepath.Join(t.TempDir(), "botanitours.sqlite"), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	stmts := []struct {
		text string
		args []any
	}{
		{"INSERT INTO plants (OGC_FID, scientific_name, eol_image) VALUES (?, ?, ?)", []any{1, "Bellis perennis", "daisy.jpg"}},
		{"INSERT INTO plants (OGC_FID, scientific_name, eol_image) VALUES (?, ?, ?)", []any{2, "Rosa canina", "rose.jpg"}},
		{"INSERT INTO plant_common_names (plant_id, name) VALUES (?, ?)", []any{1, "Daisy"}},
		{"INSERT INTO plant_common_names (plant_id, name) VALUES (?, ?)", []any{1, "Marguerite"}},
		{"INSERT INTO plant_common_names (plant_id, name) VALUES (?, ?)", []any{2, "Dog rose"}},
		{"INSERT INTO gardens (OGC_FID, name, opening_times_txt) VALUES (?, ?, ?)", []any{10, "Logan Botanic Garden", "10am-5pm"}},
		{"INSERT INTO position_infos VALUES (?, ?, ?, ?, ?, ?)", []any{1, "Plant", 2012, -3.60, 55.07, `{"type":"Point","coordinates":[-3.60,55.07]}`}},
		{"INSERT INTO position_infos VALUES (?, ?, ?, ?, ?, ?)", []any{2, "Plant", nil, -3.20, 55.90, `{"type":"Point","coordinates":[-3.20,55.90]}`}},
		{"INSERT INTO position_infos VALUES (?, ?, ?, ?, ?, ?)", []any{10, "Garden", nil, -3.61, 55.08, `{"type":"Point","coordinates":[-3.61,55.08]}`}},
	}
	for _, st := range stmts {
		if err := s.Exec(ctx, st.text, st.args...); err != nil {
			t.Fatalf("seed %q: %v", st.text, err)
		}
	}
	return s
}

func TestExtentQuery_ReturnsRowsInsideBound(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()
	b := orb.Bound{Min: orb.Point{-3.7, 55.0}, Max: orb.Point{-3.5, 55.1}}

	rows, err := s.Query(ctx, store.ExtentQuery(b, model.KindNone))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}

	rows, err = s.Query(ctx, store.ExtentQuery(b, model.KindGarden))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d want 1", len(rows))
	}
	id, _ := store.Int64(rows[0][0])
	geom, _ := store.String(rows[0][1])
	if id != 10 || geom == "" {
		t.Fatalf("unexpected row %v", rows[0])
	}
	if y, err := store.OptInt(rows[0][3]); err != nil || y != nil {
		t.Fatalf("expected NULL year, got %v %v", y, err)
	}
}

func TestTextQuery_CommonNameMatch(t *testing.T) {
	s := newSeeded(t)
	q, err := store.TextQuery(model.Filter{Kind: model.KindPlant, Subtype: model.SubtypeCommon, Text: "ROSE"}, nil)
	if err != nil {
		t.Fatalf("TextQuery: %v", err)
	}
	rows, err := s.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d want 1", len(rows))
	}
	if id, _ := store.Int64(rows[0][0]); id != 2 {
		t.Fatalf("id=%d want 2", id)
	}
}

func TestCommonNamesQuery_InsertionOrder(t *testing.T) {
	s := newSeeded(t)
	rows, err := s.Query(context.Background(), store.CommonNamesQuery(1))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	a, _ := store.String(rows[0][0])
	b, _ := store.String(rows[1][0])
	if a != "Daisy" || b != "Marguerite" {
		t.Fatalf("order=%q,%q", a, b)
	}
}

func TestQuery_BadSQLIsError(t *testing.T) {
	s := newSeeded(t)
	if _, err := s.Query(context.Background(), store.Query{Name: "bad", Text: "SELECT nope FROM missing"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpen_ReadOnlyMissingFileFails(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.sqlite"), true)
	if err == nil {
		t.Fatalf("expected error opening missing read-only database")
	}
}
