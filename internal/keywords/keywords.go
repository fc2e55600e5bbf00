// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package keywords suggests include and exclude keyword sets for a project.
// The result is stored as opaque filter metadata and never feeds scoring.
package keywords

import (
	"sort"
	"strings"

	"github.com/pdiddy/triage-engine/internal/scoring"
	"github.com/pdiddy/triage-engine/pkg/types"
)

const (
	// DefaultMax is the number of terms Suggest returns when limit <= 0.
	DefaultMax = 30

	// MinCitations is the smallest citation set Suggest mines; smaller sets
	// get Defaults.
	MinCitations = 3
)

// excludePatterns mark terms typical of animal, in vitro, and secondary
// research designs. A pattern matches whole words of a term.
var excludePatterns = []string{
	"mice", "mouse", "rat", "rats", "animal", "animals", "vitro", "cell",
	"cells", "review", "meta analysis", "case report",
}

var defaultInclude = []string{
	"clinical trial", "randomized controlled trial", "cohort study",
	"case control study", "observational study", "prospective study",
	"retrospective study", "double blind", "placebo controlled",
	"crossover design", "follow up", "survival analysis",
	"hazard ratio", "odds ratio", "risk ratio", "confidence interval",
	"statistical significance", "p value", "efficacy", "effectiveness",
	"biomarker", "genetic marker", "mutation", "polymorphism",
	"cancer", "tumor", "neoplasm", "carcinoma", "treatment outcome",
	"disease progression", "mortality", "morbidity", "recurrence",
	"metastasis", "lymph node", "human subjects", "patients",
}

var defaultExclude = []string{
	"in vitro", "cell line", "cell culture", "mouse model", "mice",
	"rat", "animal model", "animal study", "case report",
	"meta analysis", "systematic review", "literature review",
	"editorial", "letter", "comment", "guideline", "protocol",
	"questionnaire", "survey", "interview", "focus group",
	"computational model", "simulation", "algorithm",
	"theoretical model", "mathematical model",
}

// Defaults returns the fixed biomedical keyword sets.
func Defaults() types.KeywordFilter {
	return types.KeywordFilter{
		Include: append([]string(nil), defaultInclude...),
		Exclude: append([]string(nil), defaultExclude...),
	}
}

// Suggest ranks single terms and adjacent term pairs by the number of
// citations they occur in and splits the top limit into include and exclude
// sets. Ties rank alphabetically.
func Suggest(cs []types.Citation, limit int) types.KeywordFilter {
	if len(cs) < MinCitations {
		return Defaults()
	}
	if limit <= 0 {
		limit = DefaultMax
	}

	df := make(map[string]int)
	for _, c := range cs {
		terms := scoring.Terms(c.Text())
		seen := make(map[string]bool)
		for i, t := range terms {
			seen[t] = true
			if i+1 < len(terms) {
				seen[t+" "+terms[i+1]] = true
			}
		}
		for k := range seen {
			df[k]++
		}
	}

	ranked := make([]string, 0, len(df))
	for k := range df {
		ranked = append(ranked, k)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if df[a] != df[b] {
			return df[a] > df[b]
		}
		return a < b
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := types.KeywordFilter{Include: []string{}, Exclude: []string{}}
	for _, k := range ranked {
		if IsExcluded(k) {
			out.Exclude = append(out.Exclude, k)
		} else {
			out.Include = append(out.Include, k)
		}
	}
	return out
}

// IsExcluded reports whether term matches an exclusion pattern.
func IsExcluded(term string) bool {
	padded := " " + strings.ToLower(strings.Join(strings.Fields(term), " ")) + " "
	for _, p := range excludePatterns {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// Normalize trims, lowercases, and de-duplicates a user-supplied filter,
// keeping first occurrences in order.
func Normalize(kf types.KeywordFilter) types.KeywordFilter {
	return types.KeywordFilter{
		Include: normalizeList(kf.Include),
		Exclude: normalizeList(kf.Exclude),
	}
}

func normalizeList(in []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, k := range in {
		k = strings.ToLower(strings.Join(strings.Fields(k), " "))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
