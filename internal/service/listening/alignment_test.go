package listening

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendcraft/internal/catalog"
	"trendcraft/internal/domain/trend"
)

type staticNiches map[string][]string

func (n staticNiches) Niches() []string {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n staticNiches) NicheKeywords(niche string) ([]string, bool) {
	kws, ok := n[niche]
	return kws, ok
}

func TestAlignmentScorer_Score(t *testing.T) {
	s := NewAlignmentScorer(staticNiches{
		"coffee": {"coffee", "espresso", "latte", "barista"},
	})

	tests := []struct {
		name        string
		topic       string
		description string
		niche       string
		want        int
	}{
		{"no match", "Stock market rally", "Indexes up", "coffee", 0},
		{"one of four", "Coffee prices climb", "", "coffee", 25},
		{"case insensitive", "ESPRESSO machines", "LaTTe art", "coffee", 50},
		{"across topic and description", "Coffee", "espresso latte barista", "coffee", 100},
		{"repeated keyword counts once", "coffee coffee coffee", "", "coffee", 25},
		{"niche lookup ignores case", "coffee", "", " Coffee ", 25},
		{"unknown niche", "coffee espresso", "latte", "unknown_niche_xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(tt.topic, tt.description, tt.niche))
		})
	}
}

func TestAlignmentScorer_BoundsWithDefaultCatalog(t *testing.T) {
	s := NewAlignmentScorer(catalog.MustDefault())
	cat := catalog.MustDefault()

	texts := [][2]string{
		{"", ""},
		{"AI startup raises cloud funding", "Software automation and machine learning for data apps"},
		{"ai tech software code app digital automation machine learning startup innovation programming data cloud", ""},
		{"Gym workout trends", "Nutrition and wellness"},
	}

	for _, niche := range append(cat.Niches(), "unknown_niche_xyz") {
		for _, text := range texts {
			score := s.Score(text[0], text[1], niche)
			assert.GreaterOrEqual(t, score, 0)
			assert.LessOrEqual(t, score, 100)
			assert.Equal(t, score, s.Score(text[0], text[1], niche), "score must be deterministic")
		}
		assert.Equal(t, 0, s.Score(texts[1][0], texts[1][1], "unknown_niche_xyz"))
	}

	assert.Equal(t, 100, s.Score(texts[2][0], texts[2][1], "technology"))
}

func TestAlignmentScorer_RankIsStable(t *testing.T) {
	s := NewAlignmentScorer(staticNiches{"coffee": {"coffee", "espresso"}})

	trends := []trend.Trend{
		{Topic: "A", Description: "coffee"},
		{Topic: "B", Description: "espresso"},
	}

	ranked := s.Rank(trends, "coffee", 10)
	require.Len(t, ranked, 2)
	assert.Equal(t, "A", ranked[0].Trend.Topic)
	assert.Equal(t, "B", ranked[1].Trend.Topic)
	assert.Equal(t, 50, ranked[0].AlignmentScore)
	assert.Equal(t, 50, ranked[1].AlignmentScore)
}

func TestAlignmentScorer_Rank(t *testing.T) {
	s := NewAlignmentScorer(staticNiches{"coffee": {"coffee", "espresso", "latte", "barista"}})

	var trends []trend.Trend
	trends = append(trends,
		trend.Trend{Topic: "Unrelated"},
		trend.Trend{Topic: "Coffee"},
		trend.Trend{Topic: "Coffee espresso latte"},
		trend.Trend{Topic: "Espresso barista"},
	)
	for i := 0; i < 12; i++ {
		trends = append(trends, trend.Trend{Topic: "latte"})
	}

	ranked := s.Rank(trends, "coffee", 0)
	require.Len(t, ranked, DefaultRankLimit)
	assert.Equal(t, "Coffee espresso latte", ranked[0].Trend.Topic)
	assert.Equal(t, 75, ranked[0].AlignmentScore)
	assert.Equal(t, "Espresso barista", ranked[1].Trend.Topic)
	for _, r := range ranked {
		assert.Greater(t, r.AlignmentScore, 0)
	}

	top2 := s.Rank(trends, "coffee", 2)
	assert.Len(t, top2, 2)

	assert.Empty(t, s.Rank(trends, "unknown_niche_xyz", 10))
}
