package storage

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"trendcraft/internal/domain/trend"
)

// ErrNotFound is returned when a trend does not exist
var ErrNotFound = trend.ErrTrendNotFound

const (
	// DefaultListLimit applies when a filter sets no limit
	DefaultListLimit = 100
	// MaxListLimit caps any requested limit
	MaxListLimit = 500

	trendsTable = "trends"
)

var trendColumns = []string{
	"id", "topic", "description", "category", "source",
	"engagement_score", "growth_rate", "trending_since", "category_source", "created_at",
}

// findQuery builds the listing query for filter. Newest first unless a
// sort column is given; ties fall back to engagement then id.
func findQuery(filter trend.Filter, format sq.PlaceholderFormat) (string, []interface{}, error) {
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = trend.SortByCreatedAt
	}
	if !sortBy.Valid() {
		return "", nil, fmt.Errorf("invalid sort field %q", sortBy)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	where := sq.Eq{}
	if filter.Category != "" {
		where["category"] = string(filter.Category)
	}
	if filter.Source != "" {
		where["source"] = string(filter.Source)
	}
	if filter.CategorySource != "" {
		where["category_source"] = string(filter.CategorySource)
	}

	order := []string{string(sortBy) + " DESC"}
	if sortBy != trend.SortByEngagement {
		order = append(order, "engagement_score DESC")
	}
	order = append(order, "id ASC")

	q := sq.Select(trendColumns...).
		From(trendsTable).
		OrderBy(order...).
		Limit(uint64(limit)).
		PlaceholderFormat(format)
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	if len(where) > 0 {
		q = q.Where(where)
	}
	return q.ToSql()
}

// insertQuery builds one multi-row insert for trends
func insertQuery(trends []trend.Trend, format sq.PlaceholderFormat, encodeTime func(time.Time) interface{}) (string, []interface{}, error) {
	q := sq.Insert(trendsTable).Columns(trendColumns...).PlaceholderFormat(format)
	for _, t := range trends {
		q = q.Values(
			t.ID,
			t.Topic,
			t.Description,
			string(t.Category),
			string(t.Source),
			t.EngagementScore,
			t.GrowthRate,
			encodeTime(t.TrendingSince),
			string(t.CategorySource),
			encodeTime(t.CreatedAt),
		)
	}
	return q.ToSql()
}

// scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// trendRow holds the string-typed columns of a scanned trend
type trendRow struct {
	category       string
	source         string
	categorySource string
}

func (r trendRow) apply(t *trend.Trend) {
	t.Category = trend.Category(r.category)
	t.Source = trend.Source(r.source)
	t.CategorySource = trend.CategoryKey(r.categorySource)
}
