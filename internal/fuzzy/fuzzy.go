// Package fuzzy ranks candidate names against a search query.
//
// Matching is subsequence-based: the query's characters must appear in
// order, not necessarily contiguously, within a candidate. The filter is
// pure, so it can run on every keystroke.
package fuzzy

import (
	sahilm "github.com/sahilm/fuzzy"
)

// Filter returns the candidates matching query, best score first, ties
// broken by original order. An empty query returns all candidates in their
// original order. Matching is case-insensitive.
func Filter(query string, candidates []string) []string {
	if query == "" {
		out := make([]string, len(candidates))
		copy(out, candidates)
		return out
	}

	matches := sahilm.Find(query, candidates)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, candidates[m.Index])
	}
	return out
}
