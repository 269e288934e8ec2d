// Package googletrends reads the daily trending searches RSS feed.
package googletrends

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"golang.org/x/sync/errgroup"

	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

const (
	// CategoryAll is the only category the feed serves
	CategoryAll trend.CategoryKey = "all"

	maxGeos = 3
)

// Config holds feed configuration
type Config struct {
	FeedURL   string
	Geos      []string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements trend.Fetcher for Google Trends
type Fetcher struct {
	config Config
	parser *gofeed.Parser
	logger logging.Logger
}

var _ trend.Fetcher = (*Fetcher)(nil)

// NewFetcher creates a Google Trends fetcher
func NewFetcher(config Config, httpClient *http.Client, logger logging.Logger) *Fetcher {
	if config.FeedURL == "" {
		config.FeedURL = "https://trends.google.com/trending/rss"
	}
	if len(config.Geos) == 0 {
		config.Geos = []string{"US"}
	}
	if len(config.Geos) > maxGeos {
		config.Geos = config.Geos[:maxGeos]
	}
	if config.UserAgent == "" {
		config.UserAgent = "TrendCraftAI/1.0.0"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = config.UserAgent

	return &Fetcher{
		config: config,
		parser: parser,
		logger: logger.With(logging.String("source", string(trend.SourceGoogleTrends))),
	}
}

// Source returns google_trends
func (f *Fetcher) Source() trend.Source {
	return trend.SourceGoogleTrends
}

// Supports reports whether key is the all category
func (f *Fetcher) Supports(key trend.CategoryKey) bool {
	return key == CategoryAll
}

// Fetch reads the feed of every configured geo concurrently. A failing geo
// is logged and skipped; the run fails only when every geo failed.
func (f *Fetcher) Fetch(ctx context.Context, key trend.CategoryKey) ([]trend.CandidateItem, error) {
	if !f.Supports(key) {
		return nil, trend.NewError(trend.KindInvalidCategory, "google trends", errors.New("only the all category is supported"))
	}

	results := make([][]trend.CandidateItem, len(f.config.Geos))
	errs := make([]error, len(f.config.Geos))

	var g errgroup.Group
	for i, geo := range f.config.Geos {
		g.Go(func() error {
			items, err := f.fetchGeo(ctx, geo)
			if err != nil {
				f.logger.Warn("Failed to fetch trending feed",
					logging.String("geo", geo),
					logging.Error(err),
				)
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var items []trend.CandidateItem
	failed := 0
	for i, r := range results {
		if errs[i] != nil {
			failed++
			continue
		}
		items = append(items, r...)
	}
	if failed == len(f.config.Geos) {
		return nil, trend.NewError(trend.KindSourceFetchFailure, "google trends", errors.Join(errs...))
	}

	f.logger.Debug("Fetched trending searches",
		logging.Strings("geos", f.config.Geos),
		logging.Int("items", len(items)),
	)
	return items, nil
}

func (f *Fetcher) fetchGeo(ctx context.Context, geo string) ([]trend.CandidateItem, error) {
	endpoint, err := url.Parse(f.config.FeedURL)
	if err != nil {
		return nil, err
	}
	q := endpoint.Query()
	q.Set("geo", geo)
	endpoint.RawQuery = q.Encode()

	feed, err := f.parser.ParseURLWithContext(endpoint.String(), ctx)
	if err != nil {
		return nil, err
	}
	return Candidates(feed, geo), nil
}

// Candidates converts feed items into candidate items tagged with the geo
func Candidates(feed *gofeed.Feed, geo string) []trend.CandidateItem {
	tag := "google_trends_" + strings.ToUpper(geo)
	items := make([]trend.CandidateItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		var created time.Time
		if item.PublishedParsed != nil {
			created = item.PublishedParsed.UTC()
		}
		items = append(items, trend.CandidateItem{
			Title:        strings.TrimSpace(item.Title),
			SourceTag:    tag,
			RawScore:     ParseTraffic(htValue(item, "approx_traffic")),
			CommentCount: len(htExtensions(item, "news_item")),
			CreatedAt:    created,
		})
	}
	return items
}

// ParseTraffic reads values like "200,000+" or "2K+"; unreadable values are 0
func ParseTraffic(raw string) int {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "+")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	mult := 1
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1_000
	case 'M', 'm':
		mult = 1_000_000
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v * float64(mult))
}

// htExtensions returns the elements of the ht namespace with the given name
func htExtensions(item *gofeed.Item, name string) []ext.Extension {
	return item.Extensions["ht"][name]
}

func htValue(item *gofeed.Item, name string) string {
	values := htExtensions(item, name)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}
