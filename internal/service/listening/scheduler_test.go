package listening

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendcraft/internal/domain/trend"
	"trendcraft/internal/logging"
)

type countingDiscoverer struct {
	trend.Discoverer
	mu       sync.Mutex
	requests []trend.DiscoverRequest
}

func (d *countingDiscoverer) Discover(_ context.Context, req trend.DiscoverRequest) trend.DiscoveryResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if req.Category == "broken" {
		return trend.DiscoveryResult{Error: "boom", ErrorKind: trend.KindSourceFetchFailure}
	}
	return trend.DiscoveryResult{Success: true, TrendsDiscovered: 3}
}

func TestParseTargets(t *testing.T) {
	reqs, err := ParseTargets([]string{"technology", " google_trends:all ", "", "reddit:gaming"})
	require.NoError(t, err)
	assert.Equal(t, []trend.DiscoverRequest{
		{Source: trend.SourceReddit, Category: "technology"},
		{Source: trend.SourceGoogleTrends, Category: "all"},
		{Source: trend.SourceReddit, Category: "gaming"},
	}, reqs)

	_, err = ParseTargets([]string{"myspace:all"})
	assert.Error(t, err)

	_, err = ParseTargets([]string{"reddit:"})
	assert.Error(t, err)
}

func TestScheduler_RunOnce(t *testing.T) {
	d := &countingDiscoverer{}
	s, err := NewScheduler(d, SchedulerConfig{
		Spec:    "@hourly",
		Targets: []string{"technology", "broken"},
	}, logging.NewNop())
	require.NoError(t, err)

	results := s.RunOnce(context.Background())
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Len(t, d.requests, 2)
}

func TestScheduler_StopCancelsRemainingTargets(t *testing.T) {
	d := &countingDiscoverer{}
	s, err := NewScheduler(d, SchedulerConfig{Spec: "*/5 * * * *", Targets: []string{"technology"}}, logging.NewNop())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.Empty(t, s.RunOnce(s.ctx))
}

func TestNewScheduler_InvalidConfig(t *testing.T) {
	_, err := NewScheduler(&countingDiscoverer{}, SchedulerConfig{Spec: "not a cron", Targets: []string{"all"}}, logging.NewNop())
	assert.Error(t, err)

	_, err = NewScheduler(&countingDiscoverer{}, SchedulerConfig{Spec: "@daily"}, logging.NewNop())
	assert.Error(t, err)
}
