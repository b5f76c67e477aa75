// Package popup resolves the description shown when a single POI is tapped.
package popup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/store"
)

var (
	ErrNotFound = errors.New("poi not found")
	ErrNoStore  = errors.New("no spatial store available")
)

// Description is the structured popup body. Year comes from the marker, not the store.
type Description struct {
	Category     model.Kind `json:"type"`
	Title        string     `json:"title"`
	ImageURL     string     `json:"image,omitempty"`
	CommonNames  []string   `json:"common_names,omitempty"`
	OpeningTimes string     `json:"opening_times,omitempty"`
	Year         *int       `json:"year,omitempty"`
}

func (d Description) JoinedNames() string {
	return strings.Join(d.CommonNames, ", ")
}

type Describer interface {
	Describe(ctx context.Context, ref model.POIRef) (Description, error)
}

// Resolver reads descriptions straight from the spatial store.
type Resolver struct {
	q store.Querier
}

func NewResolver(q store.Querier) *Resolver {
	return &Resolver{q: q}
}

func (r *Resolver) Describe(ctx context.Context, ref model.POIRef) (Description, error) {
	if r == nil || r.q == nil {
		return Description{}, ErrNoStore
	}
	switch ref.Category {
	case model.KindPlant:
		return r.plant(ctx, ref)
	case model.KindGarden:
		return r.garden(ctx, ref)
	default:
		return Description{}, fmt.Errorf("describe %d: unknown category %q", ref.ID, ref.Category)
	}
}

func (r *Resolver) plant(ctx context.Context, ref model.POIRef) (Description, error) {
	rows, err := r.q.Query(ctx, store.PlantQuery(ref.ID))
	if err != nil {
		return Description{}, fmt.Errorf("plant %d: %w", ref.ID, err)
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return Description{}, fmt.Errorf("plant %d: %w", ref.ID, ErrNotFound)
	}
	d := Description{Category: model.KindPlant, Year: ref.Year}
	if d.Title, err = store.String(rows[0][0]); err != nil {
		return Description{}, fmt.Errorf("plant %d name: %w", ref.ID, err)
	}
	if d.ImageURL, err = store.String(rows[0][1]); err != nil {
		return Description{}, fmt.Errorf("plant %d image: %w", ref.ID, err)
	}

	names, err := r.q.Query(ctx, store.CommonNamesQuery(ref.ID))
	if err != nil {
		return Description{}, fmt.Errorf("plant %d common names: %w", ref.ID, err)
	}
	for _, row := range names {
		if len(row) == 0 {
			continue
		}
		n, err := store.String(row[0])
		if err != nil {
			return Description{}, fmt.Errorf("plant %d common name: %w", ref.ID, err)
		}
		d.CommonNames = append(d.CommonNames, n)
	}
	return d, nil
}

func (r *Resolver) garden(ctx context.Context, ref model.POIRef) (Description, error) {
	rows, err := r.q.Query(ctx, store.GardenQuery(ref.ID))
	if err != nil {
		return Description{}, fmt.Errorf("garden %d: %w", ref.ID, err)
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return Description{}, fmt.Errorf("garden %d: %w", ref.ID, ErrNotFound)
	}
	d := Description{Category: model.KindGarden}
	if d.Title, err = store.String(rows[0][0]); err != nil {
		return Description{}, fmt.Errorf("garden %d name: %w", ref.ID, err)
	}
	if d.OpeningTimes, err = store.String(rows[0][1]); err != nil {
		return Description{}, fmt.Errorf("garden %d opening times: %w", ref.ID, err)
	}
	return d, nil
}

var fragment = template.Must(template.New("popup").Parse(
	`{{if eq .Category "Garden"}}<div><h1>{{.Title}}</h1><p><strong>Opening Times:</strong> {{.OpeningTimes}}</p></div>` +
		`{{else}}<div id="poi-popup"><h1>{{.Title}}</h1>` +
		`{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Title}}">{{end}}` +
		`<p><strong>Common names</strong>: {{.JoinedNames}}</p>` +
		`{{if .Year}}<p><strong>Year of observation</strong>: {{.Year}}</p>{{end}}</div>{{end}}`))

// HTML renders d as an escaped fragment.
func HTML(d Description) (string, error) {
	var buf bytes.Buffer
	if err := fragment.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render popup: %w", err)
	}
	return buf.String(), nil
}
