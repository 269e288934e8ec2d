package listening

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendcraft/internal/adapter/llm"
	"trendcraft/internal/catalog"
	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// stubProvider returns a fixed response or error and counts calls
type stubProvider struct {
	out   string
	err   error
	calls int
	last  llm.Request
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	p.calls++
	p.last = req
	return p.out, p.err
}

// blockingProvider waits for the call context to end
type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Generate(ctx context.Context, _ llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func newTestSynthesizer(provider llm.Provider) *Synthesizer {
	s := NewSynthesizer(provider, catalog.MustDefault(), SynthesizerConfig{}, logging.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestFallbackSynthesize_GrowthClamp(t *testing.T) {
	items := []trend.CandidateItem{
		{Title: "quiet", SourceTag: "technology", RawScore: 0},
		{Title: "viral", SourceTag: "technology", RawScore: 10_000_000},
	}

	trends := FallbackSynthesize(trend.SourceReddit, items, catalog.MustDefault(), fixedNow)
	require.Len(t, trends, 2)

	for _, tr := range trends {
		assert.GreaterOrEqual(t, tr.GrowthRate, 10)
		assert.LessOrEqual(t, tr.GrowthRate, 200)
		assert.GreaterOrEqual(t, tr.EngagementScore, 0)
	}
	assert.Equal(t, 200, trends[0].GrowthRate)
	assert.Equal(t, 10, trends[1].GrowthRate)
}

func TestFallbackSynthesize_OrderAndBound(t *testing.T) {
	items := []trend.CandidateItem{
		{Title: "five", SourceTag: "business", RawScore: 5},
		{Title: "five hundred", SourceTag: "technology", RawScore: 500},
		{Title: "fifty", SourceTag: "fitness", RawScore: 50},
	}

	trends := FallbackSynthesize(trend.SourceReddit, items, catalog.MustDefault(), fixedNow)
	require.Len(t, trends, 3)
	assert.Equal(t, "five hundred", trends[0].Topic)
	assert.Equal(t, "fifty", trends[1].Topic)
	assert.Equal(t, "five", trends[2].Topic)

	assert.Equal(t, trend.CategoryTechnology, trends[0].Category)
	assert.Equal(t, trend.CategoryHealth, trends[1].Category)
	assert.Equal(t, trend.CategoryBusiness, trends[2].Category)
	assert.Equal(t, "Trending discussion from r/technology", trends[0].Description)
	assert.Equal(t, 50, trends[0].EngagementScore)
	assert.Equal(t, fixedNow, trends[0].TrendingSince)

	var many []trend.CandidateItem
	for i := 0; i < 40; i++ {
		many = append(many, trend.CandidateItem{Title: strings.Repeat("x", i+1), SourceTag: "gaming", RawScore: i})
	}
	assert.Len(t, FallbackSynthesize(trend.SourceReddit, many, catalog.MustDefault(), fixedNow), MaxTrends)
	assert.Empty(t, FallbackSynthesize(trend.SourceReddit, nil, catalog.MustDefault(), fixedNow))
}

func TestFallbackSynthesize_TruncatesTopic(t *testing.T) {
	title := strings.Repeat("é", 120)
	trends := FallbackSynthesize(trend.SourceReddit, []trend.CandidateItem{{Title: title, SourceTag: "news"}}, catalog.MustDefault(), fixedNow)
	require.Len(t, trends, 1)
	assert.Equal(t, strings.Repeat("é", 80), trends[0].Topic)
}

func TestParseModelTrends(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"plain", `[{"topic":"A","category":"Technology"}]`, 1, false},
		{"json fence", "```json\n[{\"topic\":\"A\"},{\"topic\":\"B\"}]\n```", 2, false},
		{"bare fence", "```\n[{\"topic\":\"A\"}]\n```", 1, false},
		{"trailing commas", `[{"topic":"A","relatedPosts":[1,2,],},]`, 1, false},
		{"surrounding prose", "Here are the trends:\n[{\"topic\":\"A\"}]\nHope this helps", 1, false},
		{"garbage", "I could not find any trends", 0, true},
		{"object", `{"topic":"A"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseModelTrends(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestSynthesize_ModelPath(t *testing.T) {
	provider := &stubProvider{out: `[
		{"topic":"AI agents everywhere","description":"Agents ship.","category":"technology","relatedPosts":[1,2,3],"estimatedReach":5000},
		{"topic":"","description":"dropped","category":"Business","estimatedReach":100},
		{"topic":"Slow living","description":"Calm.","category":"Wellbeing","estimatedReach":0}
	]`}
	s := newTestSynthesizer(provider)

	out, err := s.Synthesize(context.Background(), trend.SourceReddit, sampleItems(5))
	require.NoError(t, err)
	assert.Equal(t, trend.PathModel, out.Path)
	require.Len(t, out.Trends, 2)

	assert.Equal(t, trend.CategoryTechnology, out.Trends[0].Category)
	assert.Equal(t, 500, out.Trends[0].EngagementScore)
	assert.Equal(t, 100, out.Trends[0].GrowthRate)
	assert.Equal(t, fixedNow, out.Trends[0].TrendingSince)

	assert.Equal(t, trend.CategoryLifestyle, out.Trends[1].Category)
	assert.Equal(t, 100, out.Trends[1].EngagementScore)
	assert.Equal(t, 20, out.Trends[1].GrowthRate)

	assert.Equal(t, 0.7, provider.last.Temperature)
	assert.Equal(t, 4096, provider.last.MaxTokens)
	assert.Contains(t, provider.last.Prompt, `"subreddit": "technology"`)
}

func TestSynthesize_ModelGrowthFloor(t *testing.T) {
	provider := &stubProvider{out: `[{"topic":"Tiny","category":"Health","estimatedReach":10}]`}
	out, err := newTestSynthesizer(provider).Synthesize(context.Background(), trend.SourceReddit, sampleItems(3))
	require.NoError(t, err)
	require.Len(t, out.Trends, 1)
	assert.Equal(t, 15, out.Trends[0].GrowthRate)
}

func TestSynthesize_CapsModelInputs(t *testing.T) {
	provider := &stubProvider{out: `[{"topic":"T"}]`}
	s := NewSynthesizer(provider, catalog.MustDefault(), SynthesizerConfig{MaxInputs: 2}, logging.NewNop())

	_, err := s.Synthesize(context.Background(), trend.SourceReddit, sampleItems(6))
	require.NoError(t, err)
	assert.Contains(t, provider.last.Prompt, "Analyze these 2 trending")
}

func TestSynthesize_ServerErrorFallsBack(t *testing.T) {
	provider := &stubProvider{err: &llm.ProviderError{Provider: "stub", StatusCode: http.StatusInternalServerError}}

	out, err := newTestSynthesizer(provider).Synthesize(context.Background(), trend.SourceReddit, sampleItems(4))
	require.NoError(t, err)
	assert.Equal(t, trend.PathFallback, out.Path)
	assert.Len(t, out.Trends, 4)
}

func TestSynthesize_UnparseableOutputFallsBack(t *testing.T) {
	provider := &stubProvider{out: "Sorry, I can't help with that."}

	out, err := newTestSynthesizer(provider).Synthesize(context.Background(), trend.SourceReddit, sampleItems(4))
	require.NoError(t, err)
	assert.Equal(t, trend.PathFallback, out.Path)
}

func TestSynthesize_EmptyModelOutputFallsBack(t *testing.T) {
	provider := &stubProvider{out: "[]"}

	out, err := newTestSynthesizer(provider).Synthesize(context.Background(), trend.SourceReddit, sampleItems(2))
	require.NoError(t, err)
	assert.Equal(t, trend.PathFallback, out.Path)
}

func TestSynthesize_RateLimitedDoesNotFallBack(t *testing.T) {
	provider := &stubProvider{err: &llm.ProviderError{
		Provider:   "stub",
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: 30 * time.Second,
	}}

	_, err := newTestSynthesizer(provider).Synthesize(context.Background(), trend.SourceReddit, sampleItems(4))
	require.Error(t, err)
	assert.Equal(t, trend.KindRateLimited, trend.KindOf(err))

	var te *trend.Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 30*time.Second, te.RetryAfter)
}

func TestSynthesize_ExpiredRunDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out, err := newTestSynthesizer(blockingProvider{}).Synthesize(ctx, trend.SourceReddit, sampleItems(4))
	require.Error(t, err)
	assert.Equal(t, trend.KindSynthesisFailure, trend.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, out.Trends)
}

func TestSynthesize_CanceledRunDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSynthesizer(blockingProvider{}).Synthesize(ctx, trend.SourceReddit, sampleItems(4))
	require.Error(t, err)
	assert.Equal(t, trend.KindSynthesisFailure, trend.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSynthesize_AttemptTimeoutFallsBack(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("attempt: %w", context.DeadlineExceeded)}

	out, err := newTestSynthesizer(provider).Synthesize(context.Background(), trend.SourceReddit, sampleItems(3))
	require.NoError(t, err)
	assert.Equal(t, trend.PathFallback, out.Path)
}

func TestSynthesize_GoogleTrendsPresentation(t *testing.T) {
	items := []trend.CandidateItem{
		{Title: "eclipse", SourceTag: "google_trends_US", RawScore: 200_000, CommentCount: 3},
		{Title: "derby", SourceTag: "google_trends_GB", RawScore: 50_000},
	}

	provider := &stubProvider{out: `[{"topic":"Sky watching","category":"Entertainment"}]`}
	_, err := newTestSynthesizer(provider).Synthesize(context.Background(), trend.SourceGoogleTrends, items)
	require.NoError(t, err)
	assert.Contains(t, provider.last.Prompt, "Analyze these 2 Google Trends daily searches")
	assert.Contains(t, provider.last.Prompt, `"region": "US"`)
	assert.NotContains(t, provider.last.Prompt, "subreddit")
	assert.NotContains(t, provider.last.Prompt, "Reddit")

	trends := FallbackSynthesize(trend.SourceGoogleTrends, items, catalog.MustDefault(), fixedNow)
	require.Len(t, trends, 2)
	assert.Equal(t, "Trending Google search in US", trends[0].Description)
	assert.Equal(t, "Trending Google search in GB", trends[1].Description)
}

func TestSynthesize_OfflineMode(t *testing.T) {
	out, err := newTestSynthesizer(nil).Synthesize(context.Background(), trend.SourceReddit, sampleItems(3))
	require.NoError(t, err)
	assert.Equal(t, trend.PathFallback, out.Path)
	assert.Len(t, out.Trends, 3)
}

func TestSynthesize_NothingToSynthesize(t *testing.T) {
	_, err := newTestSynthesizer(nil).Synthesize(context.Background(), trend.SourceReddit, nil)
	require.Error(t, err)
	assert.Equal(t, trend.KindSynthesisFailure, trend.KindOf(err))
	assert.ErrorIs(t, err, trend.ErrNoTrends)
}

func sampleItems(n int) []trend.CandidateItem {
	tags := []string{"technology", "business", "marketing", "fitness", "gaming"}
	items := make([]trend.CandidateItem, n)
	for i := range items {
		items[i] = trend.CandidateItem{
			Title:        "Post " + string(rune('A'+i)),
			SourceTag:    tags[i%len(tags)],
			RawScore:     100 + i*10,
			CommentCount: 10 + i,
			CreatedAt:    fixedNow.Add(-time.Duration(i) * time.Hour),
		}
	}
	return items
}
