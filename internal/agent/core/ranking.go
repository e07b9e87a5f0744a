package core

import "sort"

// SourcePreferenceOrder lists source-type labels from most to least
// authoritative. Labels outside the table are treated as "unknown".
var SourcePreferenceOrder = []string{
	"primary",
	"regulator",
	"filing",
	"official",
	"analyst",
	"news",
	"community",
	"unknown",
}

var preferenceRank = func() map[string]int {
	m := make(map[string]int, len(SourcePreferenceOrder))
	for i, label := range SourcePreferenceOrder {
		m[label] = i
	}
	return m
}()

// SortByPreference orders results so that more-preferred source types sort
// earlier. The sort is stable: ties keep their relative input order. The
// input slice is not modified.
func SortByPreference(results []SearchResult) []SearchResult {
	out := make([]SearchResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		return preferenceIndex(out[i].SourceType) < preferenceIndex(out[j].SourceType)
	})
	return out
}

func preferenceIndex(sourceType string) int {
	if rank, ok := preferenceRank[sourceType]; ok {
		return rank
	}
	return preferenceRank["unknown"]
}

type sourceWeight struct {
	weight float64
	bonus  float64
}

var sourceWeights = map[string]sourceWeight{
	"primary":   {1.3, 0.2},
	"regulator": {1.25, 0.15},
	"filing":    {1.2, 0.15},
	"official":  {1.25, 0.15},
	"analyst":   {1.1, 0.1},
	"news":      {1.0, 0.05},
	"community": {0.7, -0.05},
	"unknown":   {0.6, -0.1},
}

// RankedResult is a search hit annotated with its weighted relevance score.
type RankedResult struct {
	SearchResult
	BaseScore     float64
	WeightedScore float64
}

// WeightedScore multiplies the base relevance score by the source-type weight
// and adds the preference bonus. Unlisted source types get the lowest weight
// and no bonus.
func WeightedScore(r SearchResult, base float64) float64 {
	w, ok := sourceWeights[r.SourceType]
	if !ok {
		w = sourceWeight{weight: sourceWeights["unknown"].weight}
	}
	return base*w.weight + w.bonus
}

// RankResults removes results whose source type is disallowed, then orders
// the rest by descending weighted score. baseScores pairs with results by
// index; a nil or short slice defaults missing entries to 1.0. Stable with
// respect to input order on equal scores.
func RankResults(results []SearchResult, baseScores []float64, disallowed []string) []RankedResult {
	disallowedSet := make(map[string]struct{}, len(disallowed))
	for _, t := range disallowed {
		disallowedSet[t] = struct{}{}
	}

	ranked := make([]RankedResult, 0, len(results))
	for i, r := range results {
		if _, skip := disallowedSet[r.SourceType]; skip {
			continue
		}
		base := 1.0
		if i < len(baseScores) {
			base = baseScores[i]
		}
		ranked = append(ranked, RankedResult{
			SearchResult:  r,
			BaseScore:     base,
			WeightedScore: WeightedScore(r, base),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].WeightedScore > ranked[j].WeightedScore
	})
	return ranked
}
