// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
)

// Kind is both the POI category and the filter selection.
type Kind string

const (
	KindNone   Kind = "None"
	KindPlant  Kind = "Plant"
	KindGarden Kind = "Garden"
)

// ParseKind accepts the filter-popup ids case-insensitively; empty means None.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KindNone, nil
	case "plant", "plants":
		return KindPlant, nil
	case "garden", "gardens":
		return KindGarden, nil
	default:
		return "", fmt.Errorf("unknown kind %q (want None|Plant|Garden)", s)
	}
}

const (
	SubtypeCommon     = "common"
	SubtypeScientific = "scientific"
)

// Filter is comparable; two filters are equal when == holds.
type Filter struct {
	Kind    Kind   `json:"kind"`
	Subtype string `json:"subtype,omitempty"`
	Text    string `json:"text,omitempty"`
}

func DefaultFilter() Filter {
	return Filter{Kind: KindNone}
}

// HasText reports whether a free-text match applies (a kind must be selected).
func (f Filter) HasText() bool {
	return f.Kind != KindNone && f.Kind != "" && strings.TrimSpace(f.Text) != ""
}

// Viewport is the visible map rectangle: Min is south-west, Max is north-east (lon, lat).
type Viewport struct {
	Bound orb.Bound
	Zoom  int
}

func NewViewport(w, s, e, n float64, zoom int) Viewport {
	return Viewport{
		Bound: orb.Bound{Min: orb.Point{w, s}, Max: orb.Point{e, n}},
		Zoom:  zoom,
	}
}

func (v Viewport) Center() orb.Point {
	return v.Bound.Center()
}

func (v Viewport) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f@z%d", v.Bound.Min[0], v.Bound.Min[1], v.Bound.Max[0], v.Bound.Max[1], v.Zoom)
}

type Source string

const (
	SourceStatic   Source = "static"
	SourceFiltered Source = "filtered"
	SourceExtent   Source = "extent"
)

// FetchKey identifies what a completed fetch covers. The zero value means no fetch.
type FetchKey struct {
	Source Source
	File   string
	Filter Filter
	Kind   Kind
}

func StaticKey(file string) FetchKey {
	return FetchKey{Source: SourceStatic, File: file}
}

func FilteredKey(f Filter) FetchKey {
	return FetchKey{Source: SourceFiltered, Filter: f}
}

func ExtentKey(k Kind) FetchKey {
	return FetchKey{Source: SourceExtent, Kind: k}
}

func (k FetchKey) IsZero() bool {
	return k == FetchKey{}
}

func (k FetchKey) String() string {
	switch k.Source {
	case SourceStatic:
		return "static:" + k.File
	case SourceFiltered:
		return fmt.Sprintf("filtered:%s:%s:%s", k.Filter.Kind, k.Filter.Subtype, k.Filter.Text)
	case SourceExtent:
		return "extent:" + string(k.Kind)
	default:
		return "none"
	}
}

func (k FetchKey) Hash() uint64 {
	return xxhash.Sum64String(k.String())
}

// POIRef is what a popup lookup needs to know about a marker.
type POIRef struct {
	ID       int64 `json:"id"`
	Category Kind  `json:"type"`
	Year     *int  `json:"year,omitempty"`
}

type POI struct {
	POIRef
	Point orb.Point
}
