package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

type staticSubreddits map[trend.CategoryKey][]string

func (s staticSubreddits) HasCategory(key trend.CategoryKey) bool {
	_, ok := s[key]
	return ok
}

func (s staticSubreddits) Subreddits(key trend.CategoryKey, limit int) []string {
	subs := s[key]
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs
}

type fakeReddit struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	tokenStatus int
	mu          sync.Mutex
	limits      map[string]string
	paths       chan string
}

func (fr *fakeReddit) limit(sub string) (string, bool) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	v, ok := fr.limits[sub]
	return v, ok
}

func newFakeReddit(t *testing.T) *fakeReddit {
	t.Helper()
	fr := &fakeReddit{tokenStatus: http.StatusOK, limits: map[string]string{}, paths: make(chan string, 16)}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		fr.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if fr.tokenStatus != http.StatusOK {
			w.WriteHeader(fr.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/r/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "trendcraft-test/1.0" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fr.paths <- r.URL.Path

		authed := r.Header.Get("Authorization") == "Bearer tok-123"
		public := strings.HasSuffix(r.URL.Path, ".json")
		if !authed && !public {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		sub := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/r/"), "/hot")
		sub = strings.TrimSuffix(sub, "/hot.json")
		if sub == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fr.mu.Lock()
		fr.limits[sub] = r.URL.Query().Get("limit")
		fr.mu.Unlock()
		writeListing(w, sub, 2)
	})

	fr.server = httptest.NewServer(mux)
	t.Cleanup(fr.server.Close)
	return fr
}

func writeListing(w http.ResponseWriter, sub string, n int) {
	var listing Listing
	listing.Kind = "Listing"
	for i := 0; i < n; i++ {
		child := struct {
			Kind string `json:"kind"`
			Data Post   `json:"data"`
		}{Kind: "t3", Data: Post{
			Title:       fmt.Sprintf("%s post %d", sub, i),
			Score:       100 + i,
			NumComments: 10 + i,
			Subreddit:   sub,
			Created:     1735732800,
			Over18:      i == 1,
		}}
		listing.Data.Children = append(listing.Data.Children, child)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(listing)
}

func (fr *fakeReddit) config() Config {
	return Config{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "trendcraft-test/1.0",
		TokenURL:     fr.server.URL + "/api/v1/access_token",
		APIURL:       fr.server.URL,
		PublicURL:    fr.server.URL,
		RateLimit:    100,
	}
}

var testSubs = staticSubreddits{
	"technology": {"technology", "programming", "artificial", "gadgets"},
	"mixed":      {"technology", "broken", "programming"},
	"empty":      {},
}

func TestFetcher_FetchFansOutAcrossFirstThreeSubreddits(t *testing.T) {
	fr := newFakeReddit(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	transport := &http.Transport{}
	f := NewFetcher(fr.config(), testSubs, &http.Client{Transport: transport}, nil, logging.NewNop())

	items, err := f.Fetch(context.Background(), "technology")
	transport.CloseIdleConnections()
	require.NoError(t, err)

	assert.Len(t, items, 6)
	for sub, want := range map[string]string{"technology": "40", "programming": "30", "artificial": "30"} {
		got, ok := fr.limit(sub)
		assert.True(t, ok, sub)
		assert.Equal(t, want, got, sub)
	}
	_, queried := fr.limit("gadgets")
	assert.False(t, queried)

	for _, item := range items {
		assert.NotEmpty(t, item.SourceTag)
		assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), item.CreatedAt)
	}
}

func TestFetcher_SubredditFailureIsNotFatal(t *testing.T) {
	fr := newFakeReddit(t)
	f := NewFetcher(fr.config(), testSubs, nil, nil, logging.NewNop())

	items, err := f.Fetch(context.Background(), "mixed")
	require.NoError(t, err)
	assert.Len(t, items, 4)
}

func TestFetcher_CachesToken(t *testing.T) {
	fr := newFakeReddit(t)
	f := NewFetcher(fr.config(), testSubs, nil, nil, logging.NewNop())

	_, err := f.Fetch(context.Background(), "technology")
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "technology")
	require.NoError(t, err)

	assert.Equal(t, int32(1), fr.tokenCalls.Load())
}

func TestFetcher_AuthFailure(t *testing.T) {
	fr := newFakeReddit(t)
	fr.tokenStatus = http.StatusUnauthorized
	f := NewFetcher(fr.config(), testSubs, nil, nil, logging.NewNop())

	items, err := f.Fetch(context.Background(), "technology")
	require.Error(t, err)
	assert.Nil(t, items)
	assert.Equal(t, trend.KindAuthFailure, trend.KindOf(err))
}

func TestFetcher_PublicFallback(t *testing.T) {
	fr := newFakeReddit(t)
	fr.tokenStatus = http.StatusServiceUnavailable
	cfg := fr.config()
	cfg.PublicFallback = true
	f := NewFetcher(cfg, testSubs, nil, nil, logging.NewNop())

	items, err := f.Fetch(context.Background(), "technology")
	require.NoError(t, err)
	assert.Len(t, items, 6)

	close(fr.paths)
	for p := range fr.paths {
		assert.True(t, strings.HasSuffix(p, "/hot.json"), p)
	}
}

func TestFetcher_MissingCredentials(t *testing.T) {
	fr := newFakeReddit(t)
	cfg := fr.config()
	cfg.ClientID, cfg.ClientSecret = "", ""
	f := NewFetcher(cfg, testSubs, nil, nil, logging.NewNop())

	_, err := f.Fetch(context.Background(), "technology")
	assert.Equal(t, trend.KindAuthFailure, trend.KindOf(err))
}

func TestFetcher_Supports(t *testing.T) {
	f := NewFetcher(Config{}, testSubs, nil, nil, logging.NewNop())

	assert.True(t, f.Supports("technology"))
	assert.False(t, f.Supports("empty"))
	assert.False(t, f.Supports("astrology"))
	assert.Equal(t, trend.SourceReddit, f.Source())
}

func TestListing_Candidates(t *testing.T) {
	raw := `{"kind":"Listing","data":{"children":[
		{"kind":"t3","data":{"title":"Pinned","stickied":true,"subreddit":"news"}},
		{"kind":"t3","data":{"title":"Hello","score":120,"num_comments":8,"created_utc":1735732800.5,"over_18":true}}
	]}}`

	var l Listing
	require.NoError(t, json.Unmarshal([]byte(raw), &l))

	items := l.Candidates("worldnews")
	require.Len(t, items, 1)
	assert.Equal(t, trend.CandidateItem{
		Title:        "Hello",
		SourceTag:    "worldnews",
		RawScore:     120,
		CommentCount: 8,
		CreatedAt:    time.Date(2025, 1, 1, 12, 0, 0, 500_000_000, time.UTC),
		IsAdult:      true,
	}, items[0])
}
