// internal/domain/trend/detector.go

package trend

import (
	"context"
)

// Discoverer runs the discovery pipeline and serves stored trends
type Discoverer interface {
	// Discover fetches, filters, synthesizes and stores trends for one category.
	// It never returns a Go error; failures are reported in the result.
	Discover(ctx context.Context, req DiscoverRequest) DiscoveryResult

	// GetTrends returns stored trends filtered by the provided criteria
	GetTrends(ctx context.Context, filter Filter) ([]Trend, error)

	// GetTrendByID returns a specific trend by ID
	GetTrendByID(ctx context.Context, id string) (*Trend, error)

	// RankForNiche returns stored trends ranked by alignment with a brand niche
	RankForNiche(ctx context.Context, filter Filter, niche string, limit int) ([]BrandAlignment, error)
}

// Fetcher retrieves candidate items for a category from one source
type Fetcher interface {
	// Source returns the source this fetcher serves
	Source() Source

	// Supports reports whether the fetcher can serve the category key
	Supports(key CategoryKey) bool

	// Fetch returns a flat, possibly empty, list of candidate items
	Fetch(ctx context.Context, key CategoryKey) ([]CandidateItem, error)
}

// Store persists trends
type Store interface {
	// DeleteTrends removes every trend stored for the (source, categorySource) pair
	DeleteTrends(ctx context.Context, source Source, categorySource CategoryKey) (int64, error)

	// InsertTrends stores a batch of trends and returns how many were written
	InsertTrends(ctx context.Context, trends []Trend) (int, error)

	// GetTrend retrieves a trend by ID
	GetTrend(ctx context.Context, id string) (*Trend, error)

	// FindTrends returns trends matching the filter
	FindTrends(ctx context.Context, filter Filter) ([]Trend, error)
}
