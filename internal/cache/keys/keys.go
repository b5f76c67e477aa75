// Package keys builds the keys of the popup and static file caches.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
)

// bump when the cached description layout changes
const schemaVersion = "v1"

// Popup keys one POI description: popup:v1:<kind>:<id>.
func Popup(kind model.Kind, id int64) string {
	return fmt.Sprintf("popup:%s:%s:%d", schemaVersion, sanitize(strings.ToLower(strings.TrimSpace(string(kind)))), id)
}

// Static keys a static file name. The hash suffix keeps names that sanitize
// to the same text apart.
func Static(name string) string {
	name = strings.TrimSpace(name)
	return fmt.Sprintf("static:%s:%s:f=%016x", schemaVersion, sanitize(name), xxhash.Sum64String(name))
}

func sanitize(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including non-ASCII and ':') becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
