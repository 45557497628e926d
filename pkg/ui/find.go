package ui

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// FindElement finds an element by label, title, or value (case-insensitive).
// An exact field match anywhere in the list beats a substring match; within
// a pass the first element in list order wins.
func FindElement(elements []Element, query string) (*Element, bool) {
	q := strings.ToLower(query)

	for _, exact := range []bool{true, false} {
		for i := range elements {
			if matches(elements[i], q, exact) {
				return &elements[i], true
			}
		}
	}
	return nil, false
}

func matches(e Element, q string, exact bool) bool {
	for _, field := range []string{e.Label, e.Title, e.Value} {
		f := strings.ToLower(field)
		if exact {
			if f == q {
				return true
			}
			continue
		}
		if f != "" && strings.Contains(f, q) {
			return true
		}
	}
	return false
}

// Suggest returns up to n element texts closest to query by edit distance.
func Suggest(elements []Element, query string, n int) []string {
	type candidate struct {
		text string
		dist int
	}

	q := strings.ToLower(query)
	seen := make(map[string]bool)
	var cands []candidate
	for _, e := range elements {
		text := e.Text()
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		cands = append(cands, candidate{text, levenshtein.ComputeDistance(q, strings.ToLower(text))})
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	// Candidates further than half the query length are dropped.
	limit := len(q)/2 + 1
	var out []string
	for _, c := range cands {
		if len(out) == n || c.dist > limit {
			break
		}
		out = append(out, c.text)
	}
	return out
}
