// Package store describes the spatial store the map screen reads from and
// builds the queries it issues.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
)

// Query is a statement with bound parameters. Name labels metrics and logs.
type Query struct {
	Name string
	Text string
	Args []any
}

// Row is one result tuple ordered like the select list.
type Row []any

// Querier executes one query and returns either all rows or an error. No retries.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Row, error)
}

var ErrBadColumn = errors.New("unexpected column type")

const poiColumns = "i.positionable_id, i.geometry, i.positionable_type, i.year"

// ExtentQuery selects POIs inside b, optionally restricted to one category.
func ExtentQuery(b orb.Bound, kind model.Kind) Query {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(poiColumns)
	sb.WriteString(" FROM position_infos i WHERE i.lon BETWEEN ? AND ? AND i.lat BETWEEN ? AND ?")
	args := []any{b.Min[0], b.Max[0], b.Min[1], b.Max[1]}
	if kind != model.KindNone && kind != "" {
		sb.WriteString(" AND i.positionable_type = ?")
		args = append(args, string(kind))
	}
	return Query{Name: "extent", Text: sb.String(), Args: args}
}

type textTarget struct {
	table     string
	joinField string
	field     string
}

func targetFor(f model.Filter) (textTarget, error) {
	switch f.Kind {
	case model.KindPlant:
		if f.Subtype == model.SubtypeCommon {
			return textTarget{table: "plant_common_names", joinField: "plant_id", field: "name"}, nil
		}
		return textTarget{table: "plants", joinField: "OGC_FID", field: "scientific_name"}, nil
	case model.KindGarden:
		return textTarget{table: "gardens", joinField: "OGC_FID", field: "name"}, nil
	default:
		return textTarget{}, fmt.Errorf("text filter needs a kind, got %q", f.Kind)
	}
}

// TextQuery matches f.Text case-insensitively against the name column of f's category.
// A non-nil bound adds the extent predicate.
func TextQuery(f model.Filter, b *orb.Bound) (Query, error) {
	t, err := targetFor(f)
	if err != nil {
		return Query{}, err
	}
	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT ")
	sb.WriteString(poiColumns)
	sb.WriteString(" FROM position_infos i JOIN ")
	sb.WriteString(t.table)
	sb.WriteString(" t ON t.")
	sb.WriteString(t.joinField)
	sb.WriteString(" = i.positionable_id WHERE LOWER(t.")
	sb.WriteString(t.field)
	sb.WriteString(`) LIKE LOWER(?) ESCAPE '\' AND i.positionable_type = ?`)
	args := []any{"%" + escapeLike(strings.TrimSpace(f.Text)) + "%", string(f.Kind)}
	if b != nil {
		sb.WriteString(" AND i.lon BETWEEN ? AND ? AND i.lat BETWEEN ? AND ?")
		args = append(args, b.Min[0], b.Max[0], b.Min[1], b.Max[1])
	}
	return Query{Name: "text", Text: sb.String(), Args: args}, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func PlantQuery(id int64) Query {
	return Query{
		Name: "plant",
		Text: "SELECT scientific_name, eol_image FROM plants WHERE OGC_FID = ?",
		Args: []any{id},
	}
}

func CommonNamesQuery(id int64) Query {
	return Query{
		Name: "common_names",
		Text: "SELECT c.name FROM plants p JOIN plant_common_names c ON p.OGC_FID = c.plant_id WHERE p.OGC_FID = ? ORDER BY c.rowid",
		Args: []any{id},
	}
}

func GardenQuery(id int64) Query {
	return Query{
		Name: "garden",
		Text: "SELECT name, opening_times_txt FROM gardens WHERE OGC_FID = ?",
		Args: []any{id},
	}
}

func AllPOIsQuery() Query {
	return Query{
		Name: "all_pois",
		Text: "SELECT " + poiColumns + " FROM position_infos i ORDER BY i.positionable_id",
	}
}

func Int64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrBadColumn, t)
		}
		return n, nil
	case []byte:
		return Int64(string(t))
	default:
		return 0, fmt.Errorf("%w: %T as integer", ErrBadColumn, v)
	}
}

// OptInt returns nil for SQL NULL.
func OptInt(v any) (*int, error) {
	if v == nil {
		return nil, nil
	}
	n, err := Int64(v)
	if err != nil {
		return nil, err
	}
	i := int(n)
	return &i, nil
}

func String(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case nil:
		return "", nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("%w: %T as text", ErrBadColumn, v)
	}
}
