// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"strings"
	"unicode"

	"github.com/pdiddy/triage-engine/pkg/types"
)

const minTokenLen = 3

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "these": true, "those": true, "are": true,
	"was": true, "were": true, "been": true, "has": true, "have": true,
	"had": true, "not": true, "but": true, "its": true, "their": true,
	"our": true, "into": true, "than": true, "then": true, "also": true,
	"which": true, "who": true, "whom": true, "what": true, "when": true,
	"where": true, "while": true, "all": true, "any": true, "can": true,
	"may": true, "might": true, "using": true, "used": true, "use": true,
	"between": true, "among": true, "after": true, "before": true,
	"over": true, "under": true, "both": true, "each": true, "such": true,
	"other": true, "more": true, "most": true, "less": true, "via": true,
	"study": true, "results": true, "methods": true, "background": true,
	"conclusion": true, "conclusions": true,
}

// Terms returns the lowercase alphanumeric terms of at least three
// characters in text, minus stopwords, in text order.
func Terms(text string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < minTokenLen || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Tokenize returns the set of Terms in text.
func Tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Terms(text) {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func tokenSets(cs []types.Citation) []map[string]struct{} {
	sets := make([]map[string]struct{}, len(cs))
	for i, c := range cs {
		sets[i] = Tokenize(c.Text())
	}
	return sets
}
