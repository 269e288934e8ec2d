package trend

import (
	"strings"
	"time"
)

// Category is the user-facing label assigned to a trend
type Category string

const (
	CategoryTechnology    Category = "Technology"
	CategoryBusiness      Category = "Business"
	CategoryMarketing     Category = "Marketing"
	CategoryHealth        Category = "Health"
	CategoryLifestyle     Category = "Lifestyle"
	CategoryFinance       Category = "Finance"
	CategoryGaming        Category = "Gaming"
	CategoryScience       Category = "Science"
	CategoryEntertainment Category = "Entertainment"
)

// Categories lists every valid trend category
var Categories = []Category{
	CategoryTechnology,
	CategoryBusiness,
	CategoryMarketing,
	CategoryHealth,
	CategoryLifestyle,
	CategoryFinance,
	CategoryGaming,
	CategoryScience,
	CategoryEntertainment,
}

// Valid reports whether c is one of the fixed categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory maps a free-form label onto the fixed enum, case-insensitively.
// Unknown labels map to Lifestyle.
func ParseCategory(label string) Category {
	label = strings.TrimSpace(label)
	for _, known := range Categories {
		if strings.EqualFold(label, string(known)) {
			return known
		}
	}
	return CategoryLifestyle
}

// Source identifies where a trend originated
type Source string

const (
	SourceReddit       Source = "reddit"
	SourceTwitter      Source = "twitter"
	SourceGoogleTrends Source = "google_trends"
	SourceManual       Source = "manual"
)

// Valid reports whether s is a known source
func (s Source) Valid() bool {
	switch s {
	case SourceReddit, SourceTwitter, SourceGoogleTrends, SourceManual:
		return true
	}
	return false
}

// CategoryKey is a discovery bucket, e.g. "technology". It selects the
// sub-sources to query and tags stored trends for later replacement.
type CategoryKey string

// CandidateItem is one raw fetched item before filtering and grouping
type CandidateItem struct {
	Title        string
	SourceTag    string
	RawScore     int
	CommentCount int
	CreatedAt    time.Time
	IsAdult      bool
}

// Engagement is the unweighted activity signal used for ordering
func (c CandidateItem) Engagement() int {
	return c.RawScore + c.CommentCount
}

// Trend represents a synthesized trending topic
type Trend struct {
	ID              string      `json:"id"`
	Topic           string      `json:"topic"`
	Description     string      `json:"description"`
	Category        Category    `json:"category"`
	Source          Source      `json:"source"`
	EngagementScore int         `json:"engagementScore"`
	GrowthRate      int         `json:"growthRate"`
	TrendingSince   time.Time   `json:"trendingSince"`
	CategorySource  CategoryKey `json:"categorySource"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// BrandAlignment pairs a trend with its alignment score for a niche.
// It is derived on demand and never stored.
type BrandAlignment struct {
	Trend          Trend `json:"trend"`
	AlignmentScore int   `json:"alignmentScore"`
}

// Filter defines criteria for listing stored trends
type Filter struct {
	Category       Category
	Source         Source
	CategorySource CategoryKey
	SortBy         SortField
	Limit          int
	// Offset skips rows of the ordered listing
	Offset int
}

// SortField selects the ordering for listed trends
type SortField string

const (
	SortByCreatedAt  SortField = "created_at"
	SortByGrowth     SortField = "growth_rate"
	SortByEngagement SortField = "engagement_score"
)

// Valid reports whether f is a supported sort column
func (f SortField) Valid() bool {
	switch f {
	case SortByCreatedAt, SortByGrowth, SortByEngagement:
		return true
	}
	return false
}

// DiscoverRequest selects what a discovery run fetches
type DiscoverRequest struct {
	Category CategoryKey `json:"category"`
	Source   Source      `json:"source,omitempty"`
}

// Synthesis paths reported in DiscoveryResult
const (
	PathModel    = "model"
	PathFallback = "fallback"
)

// DiscoveryResult is the structured outcome of one discovery run
type DiscoveryResult struct {
	Success          bool          `json:"success"`
	TrendsDiscovered int           `json:"trendsDiscovered"`
	Error            string        `json:"error,omitempty"`
	ErrorKind        Kind          `json:"errorKind,omitempty"`
	SynthesisPath    string        `json:"synthesisPath,omitempty"`
	RetryAfter       time.Duration `json:"-"`
}
