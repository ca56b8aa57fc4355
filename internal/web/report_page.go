package web

//go:generate templ generate -f report_page.templ

import (
	"cmp"
	"maps"
	"slices"

	"github.com/JonMunkholm/maintetl/internal/export"
)

// sortedKeys returns map keys in order so the page renders deterministically.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

func artifactFormat(a export.Artifact) string {
	if a.Fallback {
		return string(a.Format) + " (fallback)"
	}
	return string(a.Format)
}
