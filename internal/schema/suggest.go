package schema

import (
	"sort"
	"strings"
)

// suggestThreshold is the minimum trigram Jaccard similarity for a header
// to be offered as a near miss.
const suggestThreshold = 0.3

const maxSuggestions = 3

// suggest ranks the unbound headers by how closely they resemble any
// candidate spelling of f.
func suggest(columns []string, f Field, bound Mapping) []string {
	taken := make(map[string]bool, len(bound.Fields))
	for _, phys := range bound.Fields {
		taken[phys] = true
	}

	type scored struct {
		column string
		score  float64
	}
	var hits []scored
	for _, col := range columns {
		if taken[col] {
			continue
		}
		best := 0.0
		for _, cand := range f.Candidates() {
			if s := Similarity(col, cand); s > best {
				best = s
			}
		}
		if best >= suggestThreshold {
			hits = append(hits, scored{column: col, score: best})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > maxSuggestions {
		hits = hits[:maxSuggestions]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.column
	}
	return out
}

// Similarity is the Jaccard similarity of the character trigrams of a and
// b, compared case-insensitively with separators normalised.
func Similarity(a, b string) float64 {
	set1 := gramSet(normalize(a))
	set2 := gramSet(normalize(b))

	intersection := 0
	for g := range set1 {
		if set2[g] {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// gramSet creates the set of character trigrams of s.
func gramSet(s string) map[string]bool {
	const n = 3
	set := make(map[string]bool)
	r := []rune(s)
	if len(r) == 0 {
		return set
	}
	if len(r) < n {
		set[s] = true
		return set
	}
	for i := 0; i <= len(r)-n; i++ {
		set[string(r[i:i+n])] = true
	}
	return set
}
