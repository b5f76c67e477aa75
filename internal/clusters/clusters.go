// Package clusters maps zoom levels to pre-clustered static GeoJSON files.
package clusters

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
)

const GardensFile = "Gardens.json"

// Mapping holds zoom -> divisor with ranges already expanded.
type Mapping struct {
	divisors map[int]string
	maxZoom  int
}

// Parse reads {"0-3": 1000, "4": "500"}; range keys expand to every zoom a..b inclusive.
func Parse(raw string) (Mapping, error) {
	m := Mapping{divisors: map[int]string{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m, nil
	}

	var in map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return Mapping{}, fmt.Errorf("parse clusters json: %w", err)
	}
	// ranges first so an exact zoom key always wins over an overlapping range
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ri, rj := strings.Contains(keys[i], "-"), strings.Contains(keys[j], "-")
		if ri != rj {
			return ri
		}
		return keys[i] < keys[j]
	})

	for _, k := range keys {
		div, err := divisor(in[k])
		if err != nil {
			return Mapping{}, fmt.Errorf("clusters[%q]: %w", k, err)
		}
		lo, hi, err := zoomRange(k)
		if err != nil {
			return Mapping{}, fmt.Errorf("clusters[%q]: %w", k, err)
		}
		for z := lo; z <= hi; z++ {
			m.divisors[z] = div
		}
		if hi > m.maxZoom {
			m.maxZoom = hi
		}
	}
	return m, nil
}

// MustParse panics on invalid input; for tests and literals.
func MustParse(raw string) Mapping {
	m, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func divisor(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errors.New("empty divisor")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", fmt.Errorf("divisor must be a number or string: %w", err)
	}
	return n.String(), nil
}

func zoomRange(k string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(k), "-")
	switch len(parts) {
	case 1:
		z, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || z < 0 {
			return 0, 0, fmt.Errorf("invalid zoom level %q", k)
		}
		return z, z, nil
	case 2:
		lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil || lo < 0 || hi < lo {
			return 0, 0, fmt.Errorf("invalid zoom range %q", k)
		}
		return lo, hi, nil
	default:
		return 0, 0, fmt.Errorf("invalid zoom key %q", k)
	}
}

func (m Mapping) Divisor(zoom int) (string, bool) {
	d, ok := m.divisors[zoom]
	return d, ok
}

// MaxZoom is the highest zoom served from static files; pans above it may refetch.
func (m Mapping) MaxZoom() int {
	return m.maxZoom
}

func (m Mapping) Len() int {
	return len(m.divisors)
}

// Divisors returns the distinct divisors in no particular order.
func (m Mapping) Divisors() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(m.divisors))
	for _, d := range m.divisors {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func FileName(divisor string, kind model.Kind) string {
	name := "cluster" + divisor + ".json"
	if kind == model.KindPlant {
		return string(model.KindPlant) + name
	}
	return name
}
