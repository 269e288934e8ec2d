// Package reddit fetches hot posts for a discovery category from Reddit.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

const (
	// maxSubreddits is how many sub-sources of a category are queried
	maxSubreddits = 3
	firstLimit    = 40
	otherLimit    = 30
	timeframe     = "day"
)

// errTokenRejected is returned when a listing call answers 401 to a bearer token
var errTokenRejected = errors.New("reddit rejected the access token")

// SubredditSource maps a category key to its subreddits
type SubredditSource interface {
	HasCategory(key trend.CategoryKey) bool
	Subreddits(key trend.CategoryKey, limit int) []string
}

// Config holds Reddit client configuration
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	TokenURL     string
	APIURL       string
	PublicURL    string
	// PublicFallback reads the unauthenticated listings when the token exchange fails
	PublicFallback bool
	// RateLimit is requests per second across all listing calls
	RateLimit float64
	Timeout   time.Duration
}

// Fetcher implements trend.Fetcher for Reddit
type Fetcher struct {
	config      Config
	subreddits  SubredditSource
	credentials *clientcredentials.Config
	httpClient  *http.Client
	cache       TokenCache
	limiter     *rate.Limiter
	logger      logging.Logger
}

var _ trend.Fetcher = (*Fetcher)(nil)

// NewFetcher creates a Reddit fetcher. A nil httpClient gets one with
// config.Timeout; a nil cache keeps tokens in memory.
func NewFetcher(config Config, subreddits SubredditSource, httpClient *http.Client, cache TokenCache, logger logging.Logger) *Fetcher {
	if config.UserAgent == "" {
		config.UserAgent = "TrendCraftAI/1.0.0"
	}
	if config.TokenURL == "" {
		config.TokenURL = "https://www.reddit.com/api/v1/access_token"
	}
	if config.APIURL == "" {
		config.APIURL = "https://oauth.reddit.com"
	}
	if config.PublicURL == "" {
		config.PublicURL = "https://www.reddit.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if cache == nil {
		cache = NewMemoryTokenCache()
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	f := &Fetcher{
		config:     config,
		subreddits: subreddits,
		httpClient: &http.Client{
			Transport: &userAgentTransport{userAgent: config.UserAgent, next: httpClient.Transport},
			Timeout:   httpClient.Timeout,
		},
		cache:   cache,
		limiter: rate.NewLimiter(limit, maxSubreddits),
		logger:  logger.With(logging.String("source", string(trend.SourceReddit))),
	}

	if config.ClientID != "" {
		f.credentials = &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
	}
	return f
}

// Source returns reddit
func (f *Fetcher) Source() trend.Source {
	return trend.SourceReddit
}

// Supports reports whether the category has subreddits
func (f *Fetcher) Supports(key trend.CategoryKey) bool {
	return f.subreddits.HasCategory(key) && len(f.subreddits.Subreddits(key, 1)) > 0
}

// Fetch returns hot posts from the first three subreddits of the category.
// Subreddits are fetched concurrently; a failing subreddit is logged and
// contributes no items. A failed token exchange is an auth_failure unless
// the public fallback is enabled.
func (f *Fetcher) Fetch(ctx context.Context, key trend.CategoryKey) ([]trend.CandidateItem, error) {
	subs := f.subreddits.Subreddits(key, maxSubreddits)
	if len(subs) == 0 {
		return nil, nil
	}

	base, token := f.config.APIURL, ""
	tok, err := f.accessToken(ctx)
	if err != nil {
		if !f.config.PublicFallback {
			return nil, trend.NewError(trend.KindAuthFailure, "reddit token", err)
		}
		f.logger.Warn("Reddit token exchange failed, using public listings", logging.Error(err))
		base = f.config.PublicURL
	} else {
		token = tok
	}

	results := make([][]trend.CandidateItem, len(subs))
	var rejected atomic.Bool

	// A plain Group: one failing subreddit must not cancel its siblings.
	var g errgroup.Group
	for i, sub := range subs {
		limit := otherLimit
		if i == 0 {
			limit = firstLimit
		}
		g.Go(func() error {
			items, err := f.fetchSubreddit(ctx, base, token, sub, limit)
			if errors.Is(err, errTokenRejected) {
				rejected.Store(true)
			}
			if err != nil {
				f.logger.Warn("Failed to fetch subreddit",
					logging.String("subreddit", sub),
					logging.String("kind", string(trend.KindSourceFetchFailure)),
					logging.Error(err),
				)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if rejected.Load() {
		f.logger.Warn("Reddit rejected the cached token, dropping it")
		if err := f.cache.Delete(ctx, f.tokenCacheKey()); err != nil {
			f.logger.Warn("Token cache delete failed", logging.Error(err))
		}
	}

	var items []trend.CandidateItem
	for _, r := range results {
		items = append(items, r...)
	}
	f.logger.Debug("Fetched reddit posts",
		logging.String("category", string(key)),
		logging.Strings("subreddits", subs),
		logging.Int("posts", len(items)),
	)
	return items, nil
}

// accessToken returns a cached token or performs the client-credentials exchange
func (f *Fetcher) accessToken(ctx context.Context) (string, error) {
	if f.credentials == nil {
		return "", errors.New("reddit credentials are not configured")
	}

	cacheKey := f.tokenCacheKey()
	if tok, err := f.cache.Get(ctx, cacheKey); err != nil {
		f.logger.Warn("Token cache read failed", logging.Error(err))
	} else if tok != nil && tok.AccessToken != "" {
		return tok.AccessToken, nil
	}

	tok, err := f.credentials.Token(context.WithValue(ctx, oauth2.HTTPClient, f.httpClient))
	if err != nil {
		return "", fmt.Errorf("client credentials exchange: %w", err)
	}

	if err := f.cache.Set(ctx, cacheKey, tok); err != nil {
		f.logger.Warn("Token cache write failed", logging.Error(err))
	}
	return tok.AccessToken, nil
}

func (f *Fetcher) tokenCacheKey() string {
	return "reddit:" + f.config.ClientID
}

func (f *Fetcher) fetchSubreddit(ctx context.Context, base, token, subreddit string, limit int) ([]trend.CandidateItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := "/r/" + url.PathEscape(subreddit) + "/hot"
	query := url.Values{}
	query.Set("limit", fmt.Sprint(limit))
	query.Set("t", timeframe)
	if token == "" {
		path += ".json"
		query.Set("raw_json", "1")
	}
	endpoint := strings.TrimRight(base, "/") + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Reddit API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			return nil, errTokenRejected
		}
		return nil, fmt.Errorf("reddit API returned status code %d", resp.StatusCode)
	}

	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode Reddit API response: %w", err)
	}
	return listing.Candidates(subreddit), nil
}

// userAgentTransport sets the User-Agent Reddit requires on every request
type userAgentTransport struct {
	userAgent string
	next      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return next.RoundTrip(req)
}
