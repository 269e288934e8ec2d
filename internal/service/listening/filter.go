package listening

import (
	"trendcraft/internal/domain/trend"
)

// QualityFilterConfig holds the thresholds applied by QualityFilter
type QualityFilterConfig struct {
	MinScore    int
	MinComments int
	// Denylist holds low-quality source names matched as case-insensitive substrings of the source tag
	Denylist []string
}

// QualityFilter removes low-signal and unsafe candidate items
type QualityFilter struct {
	minScore    int
	minComments int
	denied      *keywordMatcher
}

// NewQualityFilter creates a filter from fixed thresholds
func NewQualityFilter(cfg QualityFilterConfig) *QualityFilter {
	return &QualityFilter{
		minScore:    cfg.MinScore,
		minComments: cfg.MinComments,
		denied:      newKeywordMatcher(cfg.Denylist),
	}
}

// Apply returns the items that pass every quality check, in input order.
// Items without a title or source tag are treated as malformed and dropped.
func (f *QualityFilter) Apply(items []trend.CandidateItem) []trend.CandidateItem {
	kept := make([]trend.CandidateItem, 0, len(items))
	for _, item := range items {
		if f.keep(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

func (f *QualityFilter) keep(item trend.CandidateItem) bool {
	if item.Title == "" || item.SourceTag == "" {
		return false
	}
	if item.IsAdult {
		return false
	}
	if item.RawScore < f.minScore || item.CommentCount < f.minComments {
		return false
	}
	return !f.denied.containsAny(item.SourceTag)
}

// Deduplicate collapses items sharing an exact, case-sensitive title. The last
// item seen for a title wins; output follows the first appearance of each title.
// Titles differing only in case or whitespace are not merged.
func Deduplicate(items []trend.CandidateItem) []trend.CandidateItem {
	index := make(map[string]int, len(items))
	out := make([]trend.CandidateItem, 0, len(items))
	for _, item := range items {
		if pos, ok := index[item.Title]; ok {
			out[pos] = item
			continue
		}
		index[item.Title] = len(out)
		out = append(out, item)
	}
	return out
}
