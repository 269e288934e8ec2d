package listening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"trendcraft/internal/adapter/llm"
	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

const (
	maxTopicRunes = 80

	defaultMaxInputs   = 100
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

// TagCategorizer derives a trend category from a source tag
type TagCategorizer interface {
	CategoryForTag(tag string) trend.Category
}

// SynthesizerConfig contains configuration for the synthesizer
type SynthesizerConfig struct {
	// MaxInputs caps how many candidate items are offered to the model
	MaxInputs   int
	Temperature float64
	MaxTokens   int
}

// Synthesis is the outcome of one synthesis call
type Synthesis struct {
	Trends []trend.Trend
	// Path is trend.PathModel or trend.PathFallback
	Path string
}

// Synthesizer groups candidate items into labeled trends, through a text
// generation provider when one is configured and a deterministic fallback otherwise.
type Synthesizer struct {
	provider   llm.Provider
	categories TagCategorizer
	config     SynthesizerConfig
	logger     logging.Logger
	now        func() time.Time
}

// NewSynthesizer creates a synthesizer. A nil provider runs in offline mode
// where only the fallback path is used.
func NewSynthesizer(provider llm.Provider, categories TagCategorizer, config SynthesizerConfig, logger logging.Logger) *Synthesizer {
	if config.MaxInputs <= 0 {
		config.MaxInputs = defaultMaxInputs
	}
	if config.Temperature <= 0 {
		config.Temperature = defaultTemperature
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}
	return &Synthesizer{
		provider:   provider,
		categories: categories,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Synthesize produces at most MaxTrends trends from items of one source. A
// provider rate limit is returned as a rate_limited error without falling
// back, as is a canceled or expired run context; any other model failure
// falls back to FallbackSynthesize.
func (s *Synthesizer) Synthesize(ctx context.Context, source trend.Source, items []trend.CandidateItem) (Synthesis, error) {
	now := s.now()

	if s.provider != nil {
		inputs := topByEngagement(items, s.config.MaxInputs)
		trends, err := s.synthesizeWithModel(ctx, source, inputs, now)
		switch {
		case err == nil && len(trends) > 0:
			return Synthesis{Trends: trends, Path: trend.PathModel}, nil
		case llm.IsRateLimited(err):
			e := trend.NewError(trend.KindRateLimited, "synthesize", err)
			e.RetryAfter = llm.RetryAfter(err)
			return Synthesis{}, e
		case runAborted(ctx, err):
			return Synthesis{}, trend.NewError(trend.KindSynthesisFailure, "synthesize", err)
		case err != nil:
			s.logger.Warn("Model synthesis failed, using fallback",
				logging.String("provider", s.provider.Name()),
				logging.Error(err),
			)
		default:
			s.logger.Warn("Model returned no trends, using fallback",
				logging.String("provider", s.provider.Name()),
			)
		}
	}

	trends := FallbackSynthesize(source, items, s.categories, now)
	if len(trends) == 0 {
		return Synthesis{}, trend.NewError(trend.KindSynthesisFailure, "synthesize", trend.ErrNoTrends)
	}
	return Synthesis{Trends: trends, Path: trend.PathFallback}, nil
}

// runAborted reports whether err comes from the run context itself rather
// than a single provider attempt timing out
func runAborted(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// sourceProfile describes how items of one source are presented
type sourceProfile struct {
	noun    string
	heading string
	// describe writes the fallback description for a source tag
	describe func(tag string) string
	// place sets the tag on the prompt summary
	place func(summary *postSummary, tag string)
}

var (
	redditProfile = sourceProfile{
		noun:     "trending Reddit posts",
		heading:  "REDDIT POSTS",
		describe: func(tag string) string { return "Trending discussion from r/" + tag },
		place:    func(p *postSummary, tag string) { p.Subreddit = tag },
	}
	googleTrendsProfile = sourceProfile{
		noun:    "Google Trends daily searches",
		heading: "TRENDING SEARCHES",
		describe: func(tag string) string {
			return "Trending Google search in " + regionOf(tag)
		},
		place: func(p *postSummary, tag string) { p.Region = regionOf(tag) },
	}
)

func profileFor(source trend.Source) sourceProfile {
	if source == trend.SourceGoogleTrends {
		return googleTrendsProfile
	}
	return redditProfile
}

// regionOf turns a google_trends_<GEO> tag into its geo code
func regionOf(tag string) string {
	return strings.TrimPrefix(tag, "google_trends_")
}

type postSummary struct {
	Index      int    `json:"index"`
	Title      string `json:"title"`
	Subreddit  string `json:"subreddit,omitempty"`
	Region     string `json:"region,omitempty"`
	Engagement int    `json:"engagement"`
}

type modelTrend struct {
	Topic          string  `json:"topic"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	RelatedPosts   []int   `json:"relatedPosts"`
	EstimatedReach float64 `json:"estimatedReach"`
}

func (s *Synthesizer) synthesizeWithModel(ctx context.Context, source trend.Source, items []trend.CandidateItem, now time.Time) ([]trend.Trend, error) {
	prompt, err := buildPrompt(profileFor(source), items)
	if err != nil {
		return nil, err
	}

	raw, err := s.provider.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := parseModelTrends(raw)
	if err != nil {
		return nil, trend.NewError(trend.KindSynthesisFailure, "parse model output", err)
	}

	return mapModelTrends(parsed, now), nil
}

func buildPrompt(profile sourceProfile, items []trend.CandidateItem) (string, error) {
	summaries := make([]postSummary, len(items))
	for i, item := range items {
		summaries[i] = postSummary{
			Index:      i + 1,
			Title:      item.Title,
			Engagement: item.Engagement(),
		}
		profile.place(&summaries[i], item.SourceTag)
	}
	posts, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode posts: %w", err)
	}

	labels := make([]string, len(trend.Categories))
	for i, c := range trend.Categories {
		labels[i] = string(c)
	}
	categoryList := strings.Join(labels, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are a trend analysis expert. Analyze these %d %s and identify the TOP %d DISTINCT trending topics/themes.\n\n", len(items), profile.noun, MaxTrends)
	b.WriteString(profile.heading + ":\n")
	b.Write(posts)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("1. Group similar posts together to identify broader trending topics\n")
	b.WriteString("2. Ignore duplicate or very similar topics, we want DISTINCT trends\n")
	b.WriteString("3. Focus on substantial trends (at least 3-5 posts about the same topic)\n")
	fmt.Fprintf(&b, "4. Categorize each trend into one of: %s\n", categoryList)
	b.WriteString("5. Create engaging, descriptive titles (not just post titles)\n")
	b.WriteString("6. Write compelling 1-2 sentence descriptions\n\n")
	b.WriteString("For each distinct trend, provide:\n")
	b.WriteString("- topic: A catchy, clear title for the trend (50 chars max)\n")
	b.WriteString("- description: An engaging 1-2 sentence summary (150 chars max)\n")
	fmt.Fprintf(&b, "- category: One of [%s]\n", categoryList)
	b.WriteString("- relatedPosts: Array of post indices that relate to this trend\n")
	b.WriteString("- estimatedReach: Estimated total engagement (sum of related posts' engagement)\n\n")
	b.WriteString("Return ONLY valid JSON array with this exact structure:\n")
	b.WriteString(`[{"topic": "string", "description": "string", "category": "string", "relatedPosts": [1, 2, 3], "estimatedReach": 0}]`)
	fmt.Fprintf(&b, "\n\nReturn exactly %d trends or fewer if there aren't enough distinct topics. NO markdown, NO code blocks, ONLY the JSON array.", MaxTrends)

	return b.String(), nil
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([\]}])`)

// parseModelTrends decodes the model output as a JSON array. It strips code
// fences, then attempts one cleanup pass before giving up.
func parseModelTrends(raw string) ([]modelTrend, error) {
	text := stripFences(raw)

	var out []modelTrend
	err := json.Unmarshal([]byte(text), &out)
	if err == nil {
		return out, nil
	}

	cleaned := cleanupJSON(text)
	if cleaned == text {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	out = nil
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON array after cleanup: %w", err)
	}
	return out, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// language tag, e.g. ```json
	text = strings.TrimLeftFunc(text, unicode.IsLetter)
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// cleanupJSON keeps the outermost [...] and drops trailing commas
func cleanupJSON(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return trailingCommaPattern.ReplaceAllString(text, "$1")
}

func mapModelTrends(parsed []modelTrend, now time.Time) []trend.Trend {
	trends := make([]trend.Trend, 0, len(parsed))
	for _, m := range parsed {
		topic := strings.TrimSpace(m.Topic)
		if topic == "" {
			continue
		}

		reach := int(math.Round(m.EstimatedReach))
		if reach <= 0 {
			reach = defaultReach
		}

		trends = append(trends, trend.Trend{
			Topic:           llm.TruncateRunes(topic, maxTopicRunes),
			Description:     strings.TrimSpace(m.Description),
			Category:        trend.ParseCategory(m.Category),
			EngagementScore: EngagementScore(reach),
			GrowthRate:      GrowthRate(reach, modelGrowthFloor),
			TrendingSince:   now,
		})
		if len(trends) == MaxTrends {
			break
		}
	}
	return trends
}

// FallbackSynthesize maps the highest-engagement items one to one into trends.
// Items are stable-sorted by RawScore+CommentCount descending and the first
// MaxTrends are kept.
func FallbackSynthesize(source trend.Source, items []trend.CandidateItem, categories TagCategorizer, now time.Time) []trend.Trend {
	top := topByEngagement(items, MaxTrends)
	profile := profileFor(source)

	trends := make([]trend.Trend, 0, len(top))
	for _, item := range top {
		since := item.CreatedAt
		if since.IsZero() {
			since = now
		}
		engagement := item.Engagement()
		trends = append(trends, trend.Trend{
			Topic:           llm.TruncateRunes(item.Title, maxTopicRunes),
			Description:     profile.describe(item.SourceTag),
			Category:        categories.CategoryForTag(item.SourceTag),
			EngagementScore: EngagementScore(engagement),
			GrowthRate:      GrowthRate(engagement, minGrowthRate),
			TrendingSince:   since,
		})
	}
	return trends
}

// topByEngagement returns up to n items ordered by engagement, ties in input order
func topByEngagement(items []trend.CandidateItem, n int) []trend.CandidateItem {
	sorted := make([]trend.CandidateItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Engagement() > sorted[j].Engagement()
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
