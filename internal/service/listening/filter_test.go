package listening

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"trendcraft/internal/domain/trend"
)

func redditFilter() *QualityFilter {
	return NewQualityFilter(QualityFilterConfig{
		MinScore:    50,
		MinComments: 5,
		Denylist:    []string{"circlejerk", "copypasta", "shitpost"},
	})
}

func TestQualityFilter_Apply(t *testing.T) {
	good := trend.CandidateItem{Title: "Rust 2.0 announced", SourceTag: "programming", RawScore: 50, CommentCount: 5}

	tests := []struct {
		name string
		item trend.CandidateItem
		keep bool
	}{
		{"at thresholds", good, true},
		{"adult", withAdult(good), false},
		{"low score", withScore(good, 49), false},
		{"few comments", withComments(good, 4), false},
		{"denylisted tag", withTag(good, "programmingcirclejerk"), false},
		{"denylisted tag any case", withTag(good, "CopyPasta"), false},
		{"empty title", withTitle(good, ""), false},
		{"empty tag", withTag(good, ""), false},
	}

	f := redditFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Apply([]trend.CandidateItem{tt.item})
			if tt.keep {
				assert.Equal(t, []trend.CandidateItem{tt.item}, out)
			} else {
				assert.Empty(t, out)
			}
		})
	}
}

func TestQualityFilter_OutputIsSubsetOfInput(t *testing.T) {
	var items []trend.CandidateItem
	for i := 0; i < 60; i++ {
		items = append(items, trend.CandidateItem{
			Title:        fmt.Sprintf("post %d", i),
			SourceTag:    []string{"technology", "shitpost", "business", ""}[i%4],
			RawScore:     i * 7,
			CommentCount: i % 11,
			CreatedAt:    time.Unix(int64(i), 0),
			IsAdult:      i%9 == 0,
		})
	}

	out := redditFilter().Apply(items)
	assert.NotEmpty(t, out)

	for _, kept := range out {
		found := false
		for _, in := range items {
			if cmp.Equal(kept, in) {
				found = true
				break
			}
		}
		assert.True(t, found, "item %q not present in input", kept.Title)
	}
}

func TestDeduplicate(t *testing.T) {
	items := []trend.CandidateItem{
		{Title: "A", SourceTag: "one", RawScore: 1},
		{Title: "B", SourceTag: "one", RawScore: 2},
		{Title: "A", SourceTag: "two", RawScore: 3},
		{Title: "a", SourceTag: "two", RawScore: 4},
		{Title: "A ", SourceTag: "two", RawScore: 5},
	}

	out := Deduplicate(items)

	want := []trend.CandidateItem{
		{Title: "A", SourceTag: "two", RawScore: 3},
		{Title: "B", SourceTag: "one", RawScore: 2},
		{Title: "a", SourceTag: "two", RawScore: 4},
		{Title: "A ", SourceTag: "two", RawScore: 5},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Deduplicate() mismatch (-want +got):\n%s", diff)
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	inputs := [][]trend.CandidateItem{
		nil,
		{{Title: "x"}},
		{{Title: "x", RawScore: 1}, {Title: "x", RawScore: 2}, {Title: "y"}, {Title: "x", RawScore: 3}},
		{{Title: "p"}, {Title: "q"}, {Title: "p"}, {Title: "q"}, {Title: "r"}},
	}

	for i, in := range inputs {
		once := Deduplicate(in)
		twice := Deduplicate(once)
		assert.Equal(t, once, twice, "input %d", i)
	}
}

func withAdult(c trend.CandidateItem) trend.CandidateItem {
	c.IsAdult = true
	return c
}

func withScore(c trend.CandidateItem, score int) trend.CandidateItem {
	c.RawScore = score
	return c
}

func withComments(c trend.CandidateItem, n int) trend.CandidateItem {
	c.CommentCount = n
	return c
}

func withTag(c trend.CandidateItem, tag string) trend.CandidateItem {
	c.SourceTag = tag
	return c
}

func withTitle(c trend.CandidateItem, title string) trend.CandidateItem {
	c.Title = title
	return c
}
