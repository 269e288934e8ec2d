package listening

import (
	"math"
	"sort"
	"strings"

	"trendcraft/internal/domain/trend"
)

// DefaultRankLimit is the number of trends returned by Rank when k is not positive
const DefaultRankLimit = 10

// NicheSource provides the keyword list for each brand niche
type NicheSource interface {
	Niches() []string
	NicheKeywords(niche string) ([]string, bool)
}

// AlignmentScorer measures how well trends match a brand niche by keyword overlap
type AlignmentScorer struct {
	matchers map[string]*keywordMatcher
}

// NewAlignmentScorer builds one matcher per niche
func NewAlignmentScorer(niches NicheSource) *AlignmentScorer {
	s := &AlignmentScorer{matchers: make(map[string]*keywordMatcher)}
	for _, name := range niches.Niches() {
		keywords, ok := niches.NicheKeywords(name)
		if !ok {
			continue
		}
		s.matchers[normalizeNiche(name)] = newKeywordMatcher(keywords)
	}
	return s
}

// Score returns round(100 * matched / total) for the niche keywords found as
// case-insensitive substrings of topic + " " + description. Unknown niches score 0.
func (s *AlignmentScorer) Score(topic, description, niche string) int {
	m, ok := s.matchers[normalizeNiche(niche)]
	if !ok || m.size() == 0 {
		return 0
	}
	matched := m.countMatches(topic + " " + description)
	return int(math.Round(100 * float64(matched) / float64(m.size())))
}

// Rank scores every trend for the niche, keeps positive scores and returns
// the top k by descending score. Equal scores keep their input order.
func (s *AlignmentScorer) Rank(trends []trend.Trend, niche string, k int) []trend.BrandAlignment {
	if k <= 0 {
		k = DefaultRankLimit
	}

	ranked := make([]trend.BrandAlignment, 0, len(trends))
	for _, t := range trends {
		score := s.Score(t.Topic, t.Description, niche)
		if score > 0 {
			ranked = append(ranked, trend.BrandAlignment{Trend: t, AlignmentScore: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AlignmentScore > ranked[j].AlignmentScore
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

func normalizeNiche(niche string) string {
	return strings.ToLower(strings.TrimSpace(niche))
}
